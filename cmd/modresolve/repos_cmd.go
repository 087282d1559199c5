// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReposCommand creates `modresolve repos`, which opens the repository chain
// and lists it in precedence order.
func newReposCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List the repository chain in precedence order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(exitFailure, err)
			}
			defer sess.close()

			for i, repo := range sess.chain.Repositories() {
				fmt.Fprintf(app.stdout, "%d. %s\n", i+1, RepoStyle.Render(repo.ID()))
			}
			return nil
		},
	}
}
