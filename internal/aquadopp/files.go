package aquadopp

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/beam2enu/internal/adcp"
	"github.com/banshee-data/beam2enu/internal/fsutil"
)

// ErrNoHeader is returned by Discover when the directory has no .hdr file.
var ErrNoHeader = errors.New("no .hdr file found")

// Deployment names the files of one instrument deployment sharing a
// basename, e.g. "data/AQD01" for data/AQD01.hdr, data/AQD01.sen, ...
type Deployment struct {
	Basename string
}

func (d Deployment) Header() string { return d.Basename + ".hdr" }
func (d Deployment) Sensor() string { return d.Basename + ".sen" }

// Velocity returns the velocity table paths in component order.
func (d Deployment) Velocity() [3]string {
	var out [3]string
	for k, c := range Components {
		out[k] = d.Basename + "." + c
	}
	return out
}

// ComponentOutput is the CSV path for one component in frame cs, e.g.
// AQD01_enu.v1.csv.
func (d Deployment) ComponentOutput(cs adcp.CoordinateSystem, k int) string {
	return fmt.Sprintf("%s_%s.%s.csv", d.Basename, cs.Suffix(), Components[k])
}

// CombinedOutput is the CSV path for all components in frame cs, e.g.
// AQD01_enu.csv.
func (d Deployment) CombinedOutput(cs adcp.CoordinateSystem) string {
	return fmt.Sprintf("%s_%s.csv", d.Basename, cs.Suffix())
}

// Discover returns the deployment in dir, named after the first .hdr file
// in lexical order. Only the .hdr extension is removed, so "AQD01.2019.hdr"
// yields "AQD01.2019" and Header() names the file that was found.
func Discover(fs fsutil.FileSystem, dir string) (Deployment, error) {
	names, err := fs.Glob(filepath.Join(dir, "*.hdr"))
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(names) == 0 {
		return Deployment{}, fmt.Errorf("%w in %s", ErrNoHeader, dir)
	}
	base := strings.TrimSuffix(filepath.Base(names[0]), ".hdr")
	return Deployment{Basename: filepath.Join(dir, base)}, nil
}
