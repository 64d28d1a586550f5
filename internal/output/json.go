package output

import (
	"encoding/json"
	"io"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

// Report is the one-shot JSON document.
type Report struct {
	Ports      []model.PortRecord      `json:"ports"`
	Hidden     []model.PortRecord      `json:"hidden,omitempty"`
	Containers []model.ContainerRecord `json:"containers,omitempty"`
}

// JSON writes the report with two-space indentation. An empty port list
// encodes as [] rather than null so consumers can always range over it.
func JSON(w io.Writer, r Report) error {
	if r.Ports == nil {
		r.Ports = []model.PortRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
