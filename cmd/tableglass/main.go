// Command tableglass exercises the connectivity core from the terminal:
// ping a profile, dump its schema, run ad hoc queries, and manage stored
// passwords. The desktop application uses the same stack through the
// driver contracts.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hgwr/TableGlass-sub000/internal/audit"
	"github.com/hgwr/TableGlass-sub000/internal/config"
	"github.com/hgwr/TableGlass-sub000/internal/driver"
	"github.com/hgwr/TableGlass-sub000/internal/driver/postgres"
	"github.com/hgwr/TableGlass-sub000/internal/history"
	"github.com/hgwr/TableGlass-sub000/internal/schema"
	"github.com/hgwr/TableGlass-sub000/internal/secret"
	"github.com/hgwr/TableGlass-sub000/internal/tabledata"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "tableglass",
		Short:         "Database connectivity core for TableGlass",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")

	root.AddCommand(
		pingCmd(&configFlag),
		schemaCmd(&configFlag),
		queryCmd(&configFlag),
		fetchCmd(&configFlag),
		historyCmd(&configFlag),
		secretCmd(),
	)
	return root
}

// stack is everything a subcommand needs wired together.
type stack struct {
	cfg   *config.Config
	store secret.Store
	log   *audit.Logger
	hist  *history.Store
	reg   driver.Registry
}

func openStack(configPath string) (*stack, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	store, err := secret.OpenSQLite(filepath.Join(dir, "secrets.db"))
	if err != nil {
		return nil, err
	}

	var log *audit.Logger
	if cfg.Audit.Enabled {
		path := cfg.Audit.Path
		if path == "" {
			path = filepath.Join(dir, "audit.jsonl")
		}
		log, err = audit.New(path, cfg.Audit.MaxSizeMB)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		log.Close()
		store.Close()
		return nil, err
	}

	reg := driver.NewRegistry().
		With(driver.EnginePostgres, postgres.Factory(log))

	return &stack{cfg: cfg, store: store, log: log, hist: hist, reg: reg}, nil
}

func (s *stack) close() {
	s.hist.Close()
	s.log.Close()
	s.store.Close()
}

func (s *stack) connect(ctx context.Context, profileName string) (driver.Connection, error) {
	p, ok := s.cfg.FindProfile(profileName)
	if !ok {
		return nil, fmt.Errorf("no profile named %q", profileName)
	}
	conn := s.reg.MakeConnection(p.DriverProfile(), secret.StoreResolver{Store: s.store})
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

func pingCmd(configFlag *string) *cobra.Command {
	var profileFlag string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to a profile and report liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFlag)
			if err != nil {
				return err
			}
			defer s.close()

			conn, err := s.connect(cmd.Context(), profileFlag)
			if err != nil {
				return err
			}
			defer conn.Disconnect(cmd.Context())

			p, _ := s.cfg.FindProfile(profileFlag)
			fmt.Printf("OK %s\n", p.DisplayString())
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "profile name")
	cmd.MarkFlagRequired("profile")
	return cmd
}

func schemaCmd(configFlag *string) *cobra.Command {
	var (
		profileFlag    string
		namespacesFlag []string
		tablesFlag     bool
		viewsFlag      bool
		proceduresFlag bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Introspect and print database structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFlag)
			if err != nil {
				return err
			}
			defer s.close()

			conn, err := s.connect(cmd.Context(), profileFlag)
			if err != nil {
				return err
			}
			defer conn.Disconnect(cmd.Context())

			scope := schema.Scope{
				IncludeTables:     tablesFlag,
				IncludeViews:      viewsFlag,
				IncludeProcedures: proceduresFlag,
			}
			if cmd.Flags().Changed("namespace") {
				scope.Namespaces = namespacesFlag
			}

			sch, err := conn.Metadata(cmd.Context(), scope)
			if err != nil {
				return err
			}
			printSchema(sch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "profile name")
	cmd.MarkFlagRequired("profile")
	cmd.Flags().StringSliceVar(&namespacesFlag, "namespace", nil, "restrict to these namespaces")
	cmd.Flags().BoolVar(&tablesFlag, "tables", true, "include tables")
	cmd.Flags().BoolVar(&viewsFlag, "views", true, "include views")
	cmd.Flags().BoolVar(&proceduresFlag, "procedures", false, "include stored procedures")
	return cmd
}

func printSchema(s *schema.Schema) {
	for _, c := range s.Catalogs {
		fmt.Println(c.Name)
		for _, n := range c.Namespaces {
			fmt.Printf("  %s\n", n.Name)
			for _, t := range n.Tables {
				fmt.Printf("    table %s (%d columns)\n", t.Name, len(t.Columns))
			}
			for _, v := range n.Views {
				fmt.Printf("    view %s\n", v.Name)
			}
			for _, p := range n.Procedures {
				fmt.Printf("    procedure %s (%d params)\n", p.Name, len(p.Params))
			}
		}
	}
}

func queryCmd(configFlag *string) *cobra.Command {
	var profileFlag string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute one statement and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFlag)
			if err != nil {
				return err
			}
			defer s.close()

			conn, err := s.connect(cmd.Context(), profileFlag)
			if err != nil {
				return err
			}
			defer conn.Disconnect(cmd.Context())

			start := time.Now()
			res, err := conn.Execute(cmd.Context(), value.NewRequest(args[0]))

			p, _ := s.cfg.FindProfile(profileFlag)
			entry := history.Entry{
				Statement:  args[0],
				Engine:     p.Engine,
				Database:   p.Database,
				ExecutedAt: start.UTC(),
				DurationMS: time.Since(start).Milliseconds(),
				IsError:    err != nil,
			}
			if err == nil {
				entry.RowCount = int64(len(res.Rows))
			}
			if herr := s.hist.Add(cmd.Context(), entry); herr != nil {
				fmt.Fprintln(os.Stderr, "Warning: record history:", herr)
			}

			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "profile name")
	cmd.MarkFlagRequired("profile")
	return cmd
}

func printResult(res *value.Result) {
	if res.HasRowsAffected {
		fmt.Printf("%d row(s) affected\n", res.RowsAffected)
		return
	}
	fmt.Println(strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, 0, row.Len())
		for i := 0; i < row.Len(); i++ {
			_, v := row.At(i)
			cells = append(cells, v.String())
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func fetchCmd(configFlag *string) *cobra.Command {
	var (
		profileFlag   string
		namespaceFlag string
		pageFlag      int
		pageSizeFlag  int
	)

	cmd := &cobra.Command{
		Use:   "fetch <table>",
		Short: "Fetch one page of a table through the table data service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFlag)
			if err != nil {
				return err
			}
			defer s.close()

			conn, err := s.connect(cmd.Context(), profileFlag)
			if err != nil {
				return err
			}
			defer conn.Disconnect(cmd.Context())

			svc := tabledata.New(conn)
			table := schema.TableIdentifier{Namespace: namespaceFlag, Name: args[0]}
			page, err := svc.FetchPage(cmd.Context(), table, pageFlag, pageSizeFlag)
			if err != nil {
				return err
			}

			fmt.Println(strings.Join(page.Columns, "\t"))
			for _, row := range page.Rows {
				cells := make([]string, 0, row.Values.Len())
				for i := 0; i < row.Values.Len(); i++ {
					_, v := row.Values.At(i)
					cells = append(cells, v.String())
				}
				fmt.Println(strings.Join(cells, "\t"))
			}
			if page.HasMore {
				fmt.Println("(more rows on next page)")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "profile name")
	cmd.MarkFlagRequired("profile")
	cmd.Flags().StringVar(&namespaceFlag, "namespace", "public", "table namespace")
	cmd.Flags().IntVar(&pageFlag, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&pageSizeFlag, "page-size", 50, "rows per page")
	return cmd
}

func historyCmd(configFlag *string) *cobra.Command {
	var (
		searchFlag string
		limitFlag  int
		clearFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the statement history",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFlag)
			if err != nil {
				return err
			}
			defer s.close()

			if clearFlag {
				return s.hist.Clear(cmd.Context())
			}

			var entries []history.Entry
			if searchFlag != "" {
				entries, err = s.hist.Search(cmd.Context(), "%"+searchFlag+"%", limitFlag)
			} else {
				entries, err = s.hist.Recent(cmd.Context(), limitFlag)
			}
			if err != nil {
				return err
			}

			for _, e := range entries {
				status := "ok"
				if e.IsError {
					status = "error"
				}
				fmt.Printf("%s  %-5s  %4dms  %s\n",
					e.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
					status, e.DurationMS, e.Statement)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&searchFlag, "search", "", "filter by substring")
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum entries to show")
	cmd.Flags().BoolVar(&clearFlag, "clear", false, "delete all history")
	return cmd
}

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored passwords",
	}

	set := &cobra.Command{
		Use:   "set <id>",
		Short: "Store a password under an identifier (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			store, err := secret.OpenSQLite(filepath.Join(dir, "secrets.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			return store.Set(cmd.Context(), args[0], strings.TrimRight(line, "\r\n"))
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored password (succeeds even if absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			store, err := secret.OpenSQLite(filepath.Join(dir, "secrets.db"))
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
