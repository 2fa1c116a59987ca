package card

// Transport abstracts the PC/SC layer. The production implementation is
// SCardTransport; tests supply fakes.
//
// Connections are short-lived: the session connects for each APDU exchange
// and disconnects before handing the reader to the external installer, which
// needs its own connection.
type Transport interface {
	// Readers lists the names of all attached readers.
	Readers() ([]string, error)

	// Connect opens an exclusive connection to the named reader's card.
	// It fails fast when another process holds the reader.
	Connect(reader string) (Conn, error)

	// Close releases the transport's resources.
	Close() error
}

// Conn is one exclusive connection to a card.
type Conn interface {
	// Transmit sends an APDU and returns the response data and the two
	// status-word bytes.
	Transmit(apdu []byte) (data []byte, sw1, sw2 byte, err error)

	// Close disconnects, leaving the card state untouched.
	Close() error
}

// Status words and command APDUs used by the session and probe.
// The memory applet AID is "Fmemory" under the 0xA000000846 RID.
var (
	// apduSelect is the bare SELECT used to check that the card is a
	// programmable platform at all.
	apduSelect = []byte{0x00, 0xA4, 0x04, 0x00}

	// apduGetUID asks the reader for the card UID.
	apduGetUID = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

	// apduSelectMemoryApplet selects the free-memory reporting applet.
	apduSelectMemoryApplet = []byte{
		0x00, 0xA4, 0x04, 0x00, 0x0C,
		0xA0, 0x00, 0x00, 0x08, 0x46, 0x6D, 0x65, 0x6D, 0x6F, 0x72, 0x79, 0x01,
	}
)

// Status-word constants.
const (
	sw1OK = 0x90
	sw2OK = 0x00

	// 6A82: file or application not found.
	sw1NotFound = 0x6A
	sw2NotFound = 0x82
)

// swOK reports whether the status word is 9000.
func swOK(sw1, sw2 byte) bool {
	return sw1 == sw1OK && sw2 == sw2OK
}

// swNotFound reports whether the status word is 6A82.
func swNotFound(sw1, sw2 byte) bool {
	return sw1 == sw1NotFound && sw2 == sw2NotFound
}
