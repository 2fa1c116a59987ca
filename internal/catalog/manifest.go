package catalog

import (
	"archive/zip"
	"bufio"
	"fmt"
	"strings"
)

// Identity is the name and version a CAP file declares for itself.
type Identity struct {
	Name    string
	Version string
}

// Manifest attribute names carrying the package identity. CAP files are ZIP
// archives whose META-INF/MANIFEST.MF follows the jar manifest format.
const (
	manifestPath    = "META-INF/MANIFEST.MF"
	attrPackageName = "Java-Card-Package-Name"
	attrPackageVer  = "Java-Card-Package-Version"
	attrAppletName  = "Java-Card-Applet-1-Name"
)

// ExtractIdentity reads the declared name and version from a CAP file's
// manifest. Returns ErrMalformedArtifact when the file is not a ZIP, has no
// manifest, or the manifest carries no identity attributes.
func ExtractIdentity(capPath string) (Identity, error) {
	zr, err := zip.OpenReader(capPath)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s: not a CAP archive: %v", ErrMalformedArtifact, capPath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != manifestPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, capPath, err)
		}
		defer rc.Close()

		attrs, err := parseManifest(bufio.NewScanner(rc))
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, capPath, err)
		}

		id := Identity{
			Name:    attrs[attrPackageName],
			Version: attrs[attrPackageVer],
		}
		if id.Name == "" {
			id.Name = attrs[attrAppletName]
		}
		if id.Name == "" && id.Version == "" {
			return Identity{}, fmt.Errorf("%w: %s: manifest has no identity attributes", ErrMalformedArtifact, capPath)
		}
		return id, nil
	}
	return Identity{}, fmt.Errorf("%w: %s: no manifest", ErrMalformedArtifact, capPath)
}

// parseManifest reads "Key: Value" lines, folding continuation lines
// (lines starting with a single space) into the previous value per the
// jar manifest format.
func parseManifest(sc *bufio.Scanner) (map[string]string, error) {
	attrs := make(map[string]string)
	var lastKey string

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			if lastKey != "" {
				attrs[lastKey] += strings.TrimPrefix(line, " ")
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		lastKey = strings.TrimSpace(key)
		attrs[lastKey] = strings.TrimSpace(value)
	}
	return attrs, sc.Err()
}
