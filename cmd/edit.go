package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adrata/record-sync/internal/model"
	"github.com/adrata/record-sync/internal/transition"
)

var (
	editRecordPath string
	editField      string
	editValue      string
	editClear      bool
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply a single field edit to a record",
	Long:  "Reads a record snapshot from a JSON file, routes and writes the field edit, and prints the merged record.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if editField == "" {
			return eris.New("--field is required")
		}
		if editValue == "" && !editClear {
			return eris.New("either --value or --clear is required")
		}

		data, err := os.ReadFile(editRecordPath)
		if err != nil {
			return eris.Wrapf(err, "read record %s", editRecordPath)
		}
		var rec model.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return eris.Wrap(err, "parse record")
		}

		var value any
		if !editClear {
			if err := json.Unmarshal([]byte(editValue), &value); err != nil {
				// Bare strings are accepted without quoting.
				value = editValue
			}
		}

		nav := transition.NavigatorFunc(func(path string) {
			fmt.Fprintf(cmd.OutOrStdout(), "navigate: %s\n", path)
		})
		a, err := initApp(cmd.Context(), nav)
		if err != nil {
			return err
		}
		defer a.Close()

		eng := a.engines.For(rec)
		result, err := eng.ApplyEdit(cmd.Context(), editField, value)
		if err != nil {
			if result.Retryable {
				fmt.Fprintln(cmd.ErrOrStderr(), "write failed transiently; the edit can be retried")
			}
			return err
		}

		// Deferred navigation would otherwise race process exit.
		if model.IsStageField(editField) {
			time.Sleep(time.Duration(cfg.Sync.NavigationDelayMs)*time.Millisecond + 50*time.Millisecond)
		}

		out, err := json.MarshalIndent(result.Record, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal merged record")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editRecordPath, "record", "record.json", "path to the record snapshot JSON")
	editCmd.Flags().StringVar(&editField, "field", "", "field name to edit")
	editCmd.Flags().StringVar(&editValue, "value", "", "new value (JSON or bare string)")
	editCmd.Flags().BoolVar(&editClear, "clear", false, "clear the field (explicit null)")
	rootCmd.AddCommand(editCmd)
}
