package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/client"
	"github.com/mind-engage/quiztab/internal/formats"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		user, _ := cmd.Flags().GetString("user")
		pw, _ := cmd.Flags().GetString("password")
		if user == "" {
			return errors.New("--user is required")
		}
		c := client.New(server)
		out, err := c.Login(cmd.Context(), user, pw)
		if err != nil {
			return err
		}
		if err := saveToken(out.AccessToken); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s), token valid until %s\n",
			out.User, out.Role, out.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

// readPack loads a pack file, converting YAML to JSON.
func readPack(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return formats.ReadDocument(f, filepath.Base(path))
}

func printReport(w io.Writer, rep any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

var importCmd = &cobra.Command{
	Use:   "import <pack.json|pack.yaml>",
	Short: "Upload a question pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPack(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")
		rep, err := c.Import(cmd.Context(), raw, replace)
		if perr := printReport(cmd.OutOrStdout(), rep); perr != nil {
			return perr
		}
		return err
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the question bank as a pack document",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		schema, _ := cmd.Flags().GetString("schema")
		hier, _ := cmd.Flags().GetBool("packs")
		path := "/questions/export"
		if hier {
			path = "/packs/export"
		}
		doc, err := c.Export(cmd.Context(), path, schema)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, doc, "", "  "); err != nil {
			return err
		}
		pretty.WriteByte('\n')
		return writeOut(cmd, pretty.Bytes())
	},
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List recorded attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("for")
		qid, _ := cmd.Flags().GetString("question")
		opts := bank.AttemptListOpts{UserID: user, QuestionID: qid}

		if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
			f, err := os.Create(xlsx)
			if err != nil {
				return err
			}
			if err := c.AttemptsXLSX(cmd.Context(), f, opts); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}

		list, err := c.ListAttempts(cmd.Context(), opts)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, a := range list {
			mark := "wrong"
			if a.Correct {
				mark = "right"
			}
			if a.GradedByUser {
				mark += " (self)"
			}
			fmt.Fprintf(w, "%s  %-20s %-10s %s\n", a.Timestamp.Local().Format("2006-01-02 15:04"), a.QuestionID, a.User, mark)
		}
		fmt.Fprintf(w, "%d attempts\n", len(list))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <pack.json|pack.yaml>",
	Short: "Normalize a pack locally and print the import report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPack(args[0])
		if err != nil {
			return err
		}
		res := formats.Normalize(raw)
		if err := printReport(cmd.OutOrStdout(), struct {
			Schema  string          `json:"schema"`
			Errors  []string        `json:"errors"`
			Summary formats.Summary `json:"summary"`
		}{res.Schema, res.Errors, res.Summary}); err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("%d problems in %s", len(res.Errors), args[0])
		}
		return nil
	},
}

func writeOut(cmd *cobra.Command, b []byte) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" || out == "-" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func init() {
	importCmd.Flags().Bool("replace", false, "replace questions whose id already exists")

	exportCmd.Flags().String("schema", "", "dialect to export (default: server default)")
	exportCmd.Flags().Bool("packs", false, "export the hierarchical pack dialect")
	exportCmd.Flags().StringP("out", "o", "", "write to file instead of stdout")

	attemptsCmd.Flags().String("for", "", "user to list (needs attempt:view-all)")
	attemptsCmd.Flags().String("question", "", "only attempts on this question")
	attemptsCmd.Flags().String("xlsx", "", "write a spreadsheet to this path")
}
