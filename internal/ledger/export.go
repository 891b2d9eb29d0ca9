// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Export writes the most recent runs, each with its assets, to w in the
// given format.
func (s *Store) Export(ctx context.Context, w io.Writer, format string, limit int) error {
	runs, err := s.Runs(ctx, limit)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	for i := range runs {
		runs[i].Assets, err = s.Assets(ctx, runs[i].ID)
		if err != nil {
			return err
		}
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(runs); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}
