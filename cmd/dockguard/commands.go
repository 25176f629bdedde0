package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/DockGuard/internal/api"
	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

// Warehouse is what the ops commands drive.
type Warehouse interface {
	api.Warehouse
	ShipmentManifest(ctx context.Context, shipmentRef string) (*warehouse.Manifest, error)
}

// opener connects to the warehouse and returns a cleanup func.
type opener func(ctx context.Context) (Warehouse, func(), error)

func newRootCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dockguard",
		Short: "DockGuard operations CLI",
		Long: `dockguard manages docks, shipments and pallets directly against the
configured Postgres and Redis, applying the same rules as the HTTP API.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(open),
		newDockCmd(open),
		newShipmentCmd(open),
		newPalletCmd(open),
		newAssignCmd(open),
		newDevCmd(),
	)
	return cmd
}

// withWarehouse opens the warehouse, runs fn and prints its result as JSON.
func withWarehouse(open opener, fn func(ctx context.Context, wh Warehouse) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		wh, closeFn, err := open(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		out, err := fn(ctx, wh)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the warehouse tables if they do not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newDockCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "dock", Short: "Manage loading docks"}

	var dockType string
	create := &cobra.Command{
		Use:   "create NUMBER",
		Short: "Register a dock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return wh.CreateDock(ctx, args[0], model.DockType(dockType))
			})(cmd, args)
		},
	}
	create.Flags().StringVar(&dockType, "type", string(model.DockStandard), "Dock type: STANDARD, COLD_CHAIN or VAN_ACCESS")

	list := &cobra.Command{
		Use:   "list",
		Short: "List docks",
		RunE: withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
			return wh.ListDocks(ctx)
		}),
	}
	cmd.AddCommand(create, list)
	return cmd
}

func newShipmentCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "shipment", Short: "Manage shipments"}

	var (
		origin, destination, status, capacity string
	)
	create := &cobra.Command{
		Use:   "create REF",
		Short: "Register a shipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := warehouse.NewShipment{
				ReferenceNumber: args[0],
				Origin:          origin,
				Destination:     destination,
				Status:          model.ShipmentStatus(status),
			}
			if capacity != "" {
				d, err := decimal.NewFromString(capacity)
				if err != nil {
					return fmt.Errorf("invalid --capacity %q: %w", capacity, err)
				}
				in.MaxWeightCapacity = &d
			}
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return wh.CreateShipment(ctx, in)
			})(cmd, args)
		},
	}
	create.Flags().StringVar(&origin, "origin", "", "Origin location")
	create.Flags().StringVar(&destination, "destination", "", "Destination location")
	create.Flags().StringVar(&status, "status", "", "Initial status (default PENDING)")
	create.Flags().StringVar(&capacity, "capacity", "", "Max weight capacity in kg (default from config)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List shipments",
		RunE: withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
			return wh.ListShipments(ctx)
		}),
	}
	cmd.AddCommand(
		create,
		list,
		refCommand(open, "release", "Free the dock loading a shipment and mark it SHIPPED", func(ctx context.Context, wh Warehouse, ref string) (any, error) {
			return wh.ReleaseDock(ctx, ref)
		}),
		refCommand(open, "collect", "Mark a shipment COLLECTED", func(ctx context.Context, wh Warehouse, ref string) (any, error) {
			return wh.MarkCollected(ctx, ref)
		}),
		refCommand(open, "pickup", "Check whether a driver may collect a shipment", func(ctx context.Context, wh Warehouse, ref string) (any, error) {
			return wh.CheckPickupStatus(ctx, ref)
		}),
		refCommand(open, "load", "Report the weight loaded onto a shipment", func(ctx context.Context, wh Warehouse, ref string) (any, error) {
			return wh.ShipmentLoad(ctx, ref)
		}),
		refCommand(open, "manifest", "Print the pallets bound to a shipment", func(ctx context.Context, wh Warehouse, ref string) (any, error) {
			return wh.ShipmentManifest(ctx, ref)
		}),
	)
	return cmd
}

func refCommand(open opener, use, short string, fn func(ctx context.Context, wh Warehouse, ref string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " REF",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return fn(ctx, wh, args[0])
			})(cmd, args)
		},
	}
}

func newPalletCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "pallet", Short: "Manage pallets"}

	var weight string
	create := &cobra.Command{
		Use:   "create BARCODE",
		Short: "Register a scanned pallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w *decimal.Decimal
			if weight != "" {
				d, err := decimal.NewFromString(weight)
				if err != nil {
					return fmt.Errorf("invalid --weight %q: %w", weight, err)
				}
				w = &d
			}
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return wh.CreatePallet(ctx, args[0], w)
			})(cmd, args)
		},
	}
	create.Flags().StringVar(&weight, "weight", "", "Pallet weight in kg")

	list := &cobra.Command{
		Use:   "list",
		Short: "List pallets",
		RunE: withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
			return wh.ListPallets(ctx)
		}),
	}

	scan := &cobra.Command{
		Use:   "scan BARCODE DOCK",
		Short: "Load a pallet onto the shipment at a dock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return wh.ScanPalletToDock(ctx, args[0], args[1])
			})(cmd, args)
		},
	}
	cmd.AddCommand(create, list, scan)
	return cmd
}

func newAssignCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "assign DOCK REF",
		Short: "Bind a shipment to a free dock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWarehouse(open, func(ctx context.Context, wh Warehouse) (any, error) {
				return wh.AssignDockToShipment(ctx, args[0], args[1])
			})(cmd, args)
		},
	}
}

func newDevCmd() *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development helpers",
	}
	test := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			return runCommand(cmd.Context(), "go", append(goArgs, pkgs...)...)
		},
	}
	test.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.AddCommand(
		test,
		newServiceRunner("api", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", append([]string{"run", path}, args...)...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
