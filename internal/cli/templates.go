package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/detailing/internal/tables"
)

func newTemplatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the export templates in probe order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}

			infos := []tables.Info{}
			for _, t := range tables.Default().All() {
				infos = append(infos, t.Info())
			}
			return writeTemplates(cmd.OutOrStdout(), format, infos)
		},
	}
}
