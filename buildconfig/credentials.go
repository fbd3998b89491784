package buildconfig

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/source"
)

// LoadCredentials reads the optional `-c <credentials.json>` file (spec.md §6): a
// simple `{access, hidden}` document consumed only by the object-store driver.
func LoadCredentials(path string) (source.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return source.Credentials{}, errors.Wrapf(err, "reading credentials file %q", path)
	}
	var creds source.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return source.Credentials{}, errors.Wrapf(err, "decoding credentials file %q", path)
	}
	return creds, nil
}
