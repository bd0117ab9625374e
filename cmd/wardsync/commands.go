package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/wardsync/internal/contract"
	"github.com/bft-labs/wardsync/pkg/wardsync"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) enqueueCommand() *cobra.Command {
	var (
		id      string
		body    string
		headers []string
	)
	cmd := &cobra.Command{
		Use:   "enqueue METHOD URL",
		Short: "Queue a request for replay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := wardsync.RequestDraft{ID: id, Method: args[0], URL: args[1]}
			if body != "" {
				draft.Body = body
			}
			if len(headers) > 0 {
				draft.Headers = make(map[string]any, len(headers))
				for _, h := range headers {
					k, v, ok := strings.Cut(h, ":")
					if !ok {
						return fmt.Errorf("header %q: want NAME:VALUE", h)
					}
					draft.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
				}
			}

			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				req, err := svc.Enqueue(ctx, draft)
				if err != nil {
					return err
				}
				if err := svc.Check(req); err != nil {
					c.log.Warn().Err(err).Str("id", req.ID).Msg("queued request will be discarded on replay")
				}
				fmt.Println(req.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "entry id (default: generated)")
	cmd.Flags().StringVar(&body, "body", "", "request body; JSON or text")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header NAME:VALUE (repeatable)")
	return cmd
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the queued requests in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				queue, err := svc.Queue(ctx)
				if err != nil {
					return err
				}
				if queue == nil {
					queue = []wardsync.QueuedRequest{}
				}
				return printJSON(queue)
			})
		},
	}
}

func (c *cli) drainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay the queue once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				result, err := svc.ProcessQueue(ctx)
				if printErr := printJSON(result); printErr != nil && err == nil {
					err = printErr
				}
				return err
			})
		},
	}
}

func (c *cli) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID...",
		Short: "Delete queued requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				for _, id := range args {
					if err := svc.Remove(ctx, id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
				}
				return nil
			})
		},
	}
}

func (c *cli) deadLettersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deadletters",
		Short: "Print the requests that exhausted their replay attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				dead, err := svc.DeadLetters(ctx)
				if err != nil {
					return err
				}
				if dead == nil {
					dead = []wardsync.DeadLetter{}
				}
				return printJSON(dead)
			})
		},
	}
}

func (c *cli) requeueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue ID...",
		Short: "Move dead letters back to the end of the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(ctx context.Context, svc *wardsync.Service) error {
				var errs []error
				for _, id := range args {
					if err := svc.Requeue(ctx, id); err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func (c *cli) routesCommand() *cobra.Command {
	routes := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the routes manifest",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.apply(cmd)
		},
	}

	check := &cobra.Command{
		Use:   "check [METHOD URL]",
		Short: "Validate the routes manifest, optionally matching one request",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("want no arguments or METHOD URL, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.RoutesFile == "" {
				return errors.New("no routes file: set --routes-file")
			}
			table, err := contract.LoadRoutes(c.cfg.RoutesFile)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				for _, r := range table.Routes() {
					fmt.Printf("%-7s %s\n", r.Method, r.Pattern)
				}
				return nil
			}

			method := strings.ToUpper(args[0])
			if !table.Match(method, args[1]) {
				return fmt.Errorf("%s %s: not a mounted route", method, args[1])
			}
			fmt.Printf("%s %s: mounted\n", method, args[1])
			return nil
		},
	}

	routes.AddCommand(check)
	return routes
}
