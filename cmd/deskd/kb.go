package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
	"github.com/openhelpdesk/deskd/internal/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbLoadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Chunk and index documents into the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := kb.New(db)
		total := 0
		for _, path := range args {
			n, err := r.LoadFile(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			total += n
			if !quietFlag {
				display.SuccessMsg("%s: %d chunk(s)", path, n)
			}
		}
		if !quietFlag {
			fmt.Printf("Indexed %d chunk(s) from %d file(s)\n", total, len(args))
		}
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Preview what the knowledge base returns for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := kb.New(db)
		context, err := r.GetContext(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"context": context})
		}
		if context == "" {
			fmt.Println("No matching documents.")
			return nil
		}
		fmt.Println(context)
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbLoadCmd)
	kbCmd.AddCommand(kbSearchCmd)
	rootCmd.AddCommand(kbCmd)
}
