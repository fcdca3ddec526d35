package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"trademcp/internal/app"
	"trademcp/internal/config"
	"trademcp/internal/domain"
	"trademcp/internal/engine"
	"trademcp/internal/order"
	"trademcp/internal/schema"
	"trademcp/internal/store"
	"trademcp/pkg/trademcp"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: trademcp-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                 Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  tools                   List the tools the server exposes\n")
		fmt.Fprintf(os.Stderr, "  status [-addr url]      Query a running server's ops endpoint\n")
		fmt.Fprintf(os.Stderr, "  check <tool> <json>     Validate and build an order without submitting it\n")
		fmt.Fprintf(os.Stderr, "  journal [options]       List journaled submissions\n")
		fmt.Fprintf(os.Stderr, "  export [options]        Copy journal entries into daily Parquet files\n")
		fmt.Fprintf(os.Stderr, "  archive [options]       List journal entries from the Parquet archive\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	args := os.Args[2:]
	var err error

	switch os.Args[1] {
	case "version":
		fmt.Printf("trademcp-cli %s\n", app.Version)
	case "tools":
		listTools()
	case "status":
		err = status(ctx, args)
	case "check":
		err = check(args)
	case "journal":
		err = journal(ctx, args)
	case "export":
		err = export(ctx, args)
	case "archive":
		err = archive(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	return cfg
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listTools() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tKIND\tDESCRIPTION")
	for _, t := range schema.Tools() {
		kind := "write"
		switch {
		case t.ReadOnly:
			kind = "read"
		case t.Destructive:
			kind = "destructive"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, kind, t.Description)
	}
	w.Flush()
}

// status reports the health of a running server and its latest journal
// entries.
func status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:9464", "ops endpoint of the server")
	limit := fs.Int("limit", 10, "journal entries to show")
	fs.Parse(args)

	c := trademcp.NewClient(*addr)
	healthy, err := c.Healthy(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("server %s healthy=%v\n", *addr, healthy)

	tools, err := c.Tools(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("tools: %d\n\n", len(tools))

	entries, err := c.Journal(ctx, trademcp.JournalFilter{Limit: *limit})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tTOOL\tCLASS\tSYMBOL\tSTATUS\tORDERS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			e.CreatedAt.Format(time.DateTime), e.Tool, e.Class, e.Symbol, e.Status, len(e.OrderIDs))
	}
	return w.Flush()
}

// check runs the structural and business validation of one tool call and
// prints the descriptors that would be submitted.
func check(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: trademcp-cli check <tool> '<json arguments>'")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
		return fmt.Errorf("arguments: %w", err)
	}
	req, err := schema.Parse(args[0], raw)
	if err != nil {
		return err
	}
	orderReq, ok := req.(order.Request)
	if !ok {
		return printJSON(req)
	}

	cfg := loadConfig()
	eng := engine.NewEngine(nil, nil, app.NewBuilder(cfg.Trading), app.NewRiskManager(cfg.Trading), nil, nil)
	plan, err := eng.Check(orderReq)
	if err != nil {
		return fmt.Errorf("%s: %w", domain.KindOf(err), err)
	}
	return printJSON(plan)
}

func openJournal() (*store.SQLiteStore, *config.Config, error) {
	cfg := loadConfig()
	s, err := store.NewSQLiteStore(cfg.Storage.JournalPath)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func journal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	since := fs.String("since", "", "earliest day, YYYY-MM-DD")
	until := fs.String("until", "", "last day, YYYY-MM-DD")
	status := fs.String("status", "", "only entries with this status")
	limit := fs.Int("limit", 50, "maximum entries")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	fs.Parse(args)

	start, end, err := dayRange(*since, *until)
	if err != nil {
		return err
	}
	s, _, err := openJournal()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.ListEntries(ctx, domain.JournalQuery{
		Since:  start,
		Until:  end,
		Status: domain.JournalStatus(*status),
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(entries)
	}
	printEntries(entries)
	return nil
}

func export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	since := fs.String("since", "", "earliest day, YYYY-MM-DD (default: all)")
	until := fs.String("until", "", "last day, YYYY-MM-DD (default: today)")
	fs.Parse(args)

	start, end, err := dayRange(*since, *until)
	if err != nil {
		return err
	}
	s, cfg, err := openJournal()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.ListEntries(ctx, domain.JournalQuery{Since: start, Until: end})
	if err != nil {
		return err
	}
	pq := store.NewParquetStore(cfg.Storage.DataDir)
	if err := pq.WriteEntries(ctx, entries); err != nil {
		return err
	}
	days, err := pq.ListDays()
	if err != nil {
		return err
	}
	fmt.Printf("exported %d entries; archive holds %d days under %s\n", len(entries), len(days), cfg.Storage.DataDir)
	return nil
}

func archive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	since := fs.String("since", "", "earliest day, YYYY-MM-DD (default: 30 days ago)")
	until := fs.String("until", "", "last day, YYYY-MM-DD (default: today)")
	fs.Parse(args)

	start, end, err := dayRange(*since, *until)
	if err != nil {
		return err
	}
	if start.IsZero() {
		start = time.Now().UTC().AddDate(0, 0, -30)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	entries, err := store.NewParquetStore(loadConfig().Storage.DataDir).ReadEntries(ctx, start, end)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []domain.JournalEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tTOOL\tCLASS\tSYMBOL\tSTATUS\tORDERS\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Format(time.DateTime), e.Tool, e.Class, e.Symbol, e.Status, len(e.OrderIDs), e.Detail)
	}
	w.Flush()
}

// dayRange parses inclusive YYYY-MM-DD bounds into the first and last
// millisecond they cover. An empty bound stays zero.
func dayRange(since, until string) (start, end time.Time, err error) {
	if since != "" {
		if start, err = time.Parse(time.DateOnly, since); err != nil {
			return start, end, fmt.Errorf("-since: %w", err)
		}
	}
	if until != "" {
		if end, err = time.Parse(time.DateOnly, until); err != nil {
			return start, end, fmt.Errorf("-until: %w", err)
		}
		end = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return start, end, nil
}
