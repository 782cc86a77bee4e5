// cmd/consistentsdbctl is a CLI client built with Cobra, the direct
// descendant of the teacher's cmd/client. Unlike the teacher's client
// (which talks HTTP to a peer kvcli server), this CLI runs a Consistency
// Engine in-process and only goes over HTTP for the BackingStore leg, via
// --backing=http.
//
// Usage:
//
//	consistentsdbctl put mydomain item1 --set a=1,2 --replace c=3 --server_id p1
//	consistentsdbctl get mydomain item1 a b        --server_id p1
//	consistentsdbctl delete mydomain item1 --all    --server_id p1
//	consistentsdbctl select mydomain --projection attrs --attrs a --server_id p1
//	consistentsdbctl domains list                   --server_id p1
//
// Configuration layers flags over CSDB_-prefixed environment variables
// over an optional --config YAML file over built-in defaults (see
// internal/config).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"consistentsdb/internal/action"
	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
	"consistentsdb/internal/backingstore/httpstore"
	"consistentsdb/internal/backingstore/memory"
	"consistentsdb/internal/config"
	"consistentsdb/internal/engine"
	"consistentsdb/internal/journal"
	"consistentsdb/internal/journal/memstore"
	"consistentsdb/internal/journal/redisstore"
)

var (
	backingKind  string
	backendAddr  string
	journalKind  string
	redisAddr    string
	configFile   string
)

func main() {
	root := &cobra.Command{
		Use:   "consistentsdbctl",
		Short: "CLI client for the session-consistency layer",
	}

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file (flags > env CSDB_* > this file > defaults)")
	root.PersistentFlags().StringVar(&backingKind, "backing", "memory", "backing store: memory|http")
	root.PersistentFlags().StringVar(&backendAddr, "backend-addr", "http://localhost:8080", "consistentsdbd address, when --backing=http")
	root.PersistentFlags().StringVar(&journalKind, "journal", "memory", "journal store: memory|redis")
	root.PersistentFlags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address, when --journal=redis")

	root.AddCommand(putCmd(), getCmd(), deleteCmd(), selectCmd(), domainsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildEngine wires an Engine from the layered configuration (flags > env
// CSDB_* > --config file > defaults, via config.Load) the same shape as the
// teacher's client.New(serverAddr, timeout) but for an in-process
// collaborator graph instead of one HTTP client.
func buildEngine(ctx context.Context, fs *pflag.FlagSet) (*engine.Engine, error) {
	cfg, err := config.Load(configFile, fs)
	if err != nil {
		return nil, err
	}

	var backing backingstore.Store
	switch backingKind {
	case "memory":
		backing = memory.New()
	case "http":
		backing = httpstore.New(backendAddr, cfg.BackingStoreTimeout)
	default:
		return nil, fmt.Errorf("unknown --backing %q", backingKind)
	}

	var logs, lists journal.Store
	switch journalKind {
	case "memory":
		logs, lists = memstore.New(), memstore.New()
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		logs, lists = redisstore.New(client, "log"), redisstore.New(client, "list")
	default:
		return nil, fmt.Errorf("unknown --journal %q", journalKind)
	}

	j := journal.New(logs, lists, cfg.JournalTTL, log.Default())
	return engine.New(ctx, backing, j, cfg, log.Default())
}

// parseAttrFlag parses "name=v1,v2" into a name and its values.
func parseAttrFlag(raw string) (string, []string, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", nil, fmt.Errorf("invalid attribute %q: expected name=v1,v2", raw)
	}
	return parts[0], strings.Split(parts[1], ","), nil
}

func putCmd() *cobra.Command {
	var setFlags, replaceFlags []string
	cmd := &cobra.Command{
		Use:   "put <domain> <item>",
		Short: "Write attributes to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attributes := make(map[string]action.PutAttr)
			for _, raw := range setFlags {
				name, values, err := parseAttrFlag(raw)
				if err != nil {
					return err
				}
				attributes[name] = action.PutAttr{Values: attrs.NewSetFromSlice(values), Replace: false}
			}
			for _, raw := range replaceFlags {
				name, values, err := parseAttrFlag(raw)
				if err != nil {
					return err
				}
				attributes[name] = action.PutAttr{Values: attrs.NewSetFromSlice(values), Replace: true}
			}
			if len(attributes) == 0 {
				return fmt.Errorf("put requires at least one --set or --replace")
			}

			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			records := engine.PutRecords{args[0]: {args[1]: action.Put{Attributes: attributes}}}
			if err := e.Put(ctx, records); err != nil {
				return err
			}
			fmt.Printf("put %s/%s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&setFlags, "set", nil, "name=v1,v2 — append to the attribute (repeatable)")
	cmd.Flags().StringArrayVar(&replaceFlags, "replace", nil, "name=v1,v2 — replace the attribute wholesale (repeatable)")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain> <item> [attr...]",
		Short: "Read an item, applying this process's own pending writes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			it, err := e.Get(ctx, args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			prettyPrint(it)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete <domain> <item> [attr[=v1,v2]...]",
		Short: "Delete a whole item, whole attributes, or specific values",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			del := action.Delete{All: all}
			if !all {
				del.Attributes = make(map[string]attrs.Set)
				for _, raw := range args[2:] {
					if !strings.Contains(raw, "=") {
						del.Attributes[raw] = attrs.EmptySet()
						continue
					}
					name, values, err := parseAttrFlag(raw)
					if err != nil {
						return err
					}
					del.Attributes[name] = attrs.NewSetFromSlice(values)
				}
				if len(del.Attributes) == 0 {
					return fmt.Errorf("delete requires --all or at least one attribute")
				}
			}

			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			records := engine.DeleteRecords{args[0]: {args[1]: del}}
			if err := e.Delete(ctx, records); err != nil {
				return err
			}
			fmt.Printf("deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete the whole item")
	return cmd
}

func selectCmd() *cobra.Command {
	var (
		where, orderBy, projectionFlag string
		selectAttrs                    []string
		limit                          int
	)
	cmd := &cobra.Command{
		Use:   "select <domain>",
		Short: "Query items in a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var projection backingstore.Projection
			switch projectionFlag {
			case "all", "":
				projection = backingstore.ProjectionAll()
			case "itemName":
				projection = backingstore.ProjectionItemName()
			case "count":
				projection = backingstore.ProjectionCount()
			case "attrs":
				projection = backingstore.ProjectionAttrs(selectAttrs)
			default:
				return fmt.Errorf("unknown --projection %q", projectionFlag)
			}

			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			rows, err := e.Select(ctx, engine.SelectQuery{
				Domain:     args[0],
				Where:      where,
				OrderBy:    orderBy,
				Limit:      limit,
				Projection: projection,
			})
			if err != nil {
				return err
			}
			prettyPrint(rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "filter expression")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "order-by expression")
	cmd.Flags().StringVar(&projectionFlag, "projection", "all", "all|itemName|count|attrs")
	cmd.Flags().StringSliceVar(&selectAttrs, "attrs", nil, "attribute names, when --projection=attrs")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = no limit)")
	return cmd
}

func domainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Domain administration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			names, err := e.ListDomains(ctx)
			if err != nil {
				return err
			}
			prettyPrint(names)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <domain>",
		Short: "Create a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			if err := e.CreateDomain(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("created %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <domain>",
		Short: "Delete a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			if err := e.DeleteDomain(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "metadata <domain>",
		Short: "Show a domain's item/attribute counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := buildEngine(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			meta, err := e.GetDomainMetadata(ctx, args[0])
			if err != nil {
				return err
			}
			prettyPrint(meta)
			return nil
		},
	})

	return cmd
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
