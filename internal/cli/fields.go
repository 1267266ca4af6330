package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/patientlist/internal/fields"
)

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	var personAttrs, visitAttrs []string

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the field names usable in conditions, ordering and templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := fields.Standard(personAttrs, visitAttrs).Build().Names()
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&personAttrs, "person-attr", nil, "person attribute type names")
	cmd.Flags().StringSliceVar(&visitAttrs, "visit-attr", nil, "visit attribute type names")

	return cmd
}
