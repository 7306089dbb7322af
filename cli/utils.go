package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

// printf prints a message with a trailing newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// summarizeErrors returns a one line mean / max / standard deviation summary of the given errors.
func summarizeErrors(errs []float64) (string, error) {
	mean, err := stats.Mean(errs)
	if err != nil {
		return "", err
	}
	maxErr, err := stats.Max(errs)
	if err != nil {
		return "", err
	}
	sd, err := stats.StandardDeviation(errs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("mean error: %.4f, max error: %.4f, stddev: %.4f", mean, maxErr, sd), nil
}

// jointRotation is the solved local rotation of one joint.
type jointRotation struct {
	Joint    string        `json:"joint"`
	Rotation *spatial.R4AA `json:"rotation"`
}

// saveRotationsToDisk writes the local rotation of every joint of the skeleton as JSON, sorted by name.
func saveRotationsToDisk(filePath string, skel *referenceframe.Skeleton) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "could not create directory: %s", dir)
	}

	names := lo.Keys(skel.Joints)
	slices.Sort(names)
	rotations := lo.Map(names, func(name string, _ int) jointRotation {
		return jointRotation{Joint: name, Rotation: spatial.QuatToR4AA(skel.Joints[name].Rotation())}
	})
	data, err := json.MarshalIndent(rotations, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode rotations")
	}
	//nolint:gosec
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, "could not write rotations")
	}
	return nil
}
