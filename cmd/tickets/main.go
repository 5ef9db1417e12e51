package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/emberfall/tickets/internal/config"
	"github.com/emberfall/tickets/internal/cooldown"
	"github.com/emberfall/tickets/internal/db"
	"github.com/emberfall/tickets/internal/engine"
	"github.com/emberfall/tickets/internal/model"
	"github.com/emberfall/tickets/internal/notify"
	"github.com/emberfall/tickets/internal/tui"
)

var (
	actorFlag    string
	nameFlag     string
	operatorFlag bool
	dbFlag       string

	worldFlag string
	xFlag     float64
	yFlag     float64
	zFlag     float64
	pitchFlag float64
	yawFlag   float64
)

// app bundles everything a command needs after startup wiring.
type app struct {
	cfg    config.Config
	db     *db.DB
	engine *engine.Engine
	relay  *notify.Relay
	gate   *cooldown.Gate
	actor  engine.Actor
	log    *slog.Logger
}

func (a *app) close() {
	if a.relay != nil {
		a.relay.Flush()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// setup loads config, opens the database, seeds roles and builds the
// engine for the invoking actor.
func setup(ctx context.Context) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := dbFlag
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Init(); err != nil {
		database.Close()
		return nil, err
	}

	if cfg.RolesFile != "" {
		roles, err := config.LoadRoles(cfg.RolesFile)
		if err != nil {
			database.Close()
			return nil, err
		}
		for _, role := range roles {
			if err := database.SeedRole(ctx, role); err != nil {
				database.Close()
				return nil, err
			}
		}
	}

	actorID, err := uuid.Parse(actorFlag)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("invalid actor id %q: %w", actorFlag, err)
	}
	if err := database.TouchIdentity(ctx, actorID); err != nil {
		database.Close()
		return nil, err
	}

	relay := notify.New(cfg.WebhookURL, cfg.WebhookUsername, cfg.WebhookChannelID, logger)
	eng := engine.New(database, database, relay, logger, nil)

	return &app{
		cfg:    cfg,
		db:     database,
		engine: eng,
		relay:  relay,
		gate:   cooldown.New(cfg.Cooldown(), nil),
		actor:  engine.Actor{ID: actorID, Name: nameFlag, Operator: operatorFlag},
		log:    logger,
	}, nil
}

// withApp wires startup and teardown around a command body.
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return run(ctx, a, args)
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ticket id %q", arg)
	}
	return id, nil
}

func printTicket(t *model.Ticket) {
	fmt.Printf("#%d  %s\n", t.ID, t.Status.Label(t.ClaimedBy))
	fmt.Printf("owner:    %s (%s)\n", t.OwnerName, t.OwnerID)
	fmt.Printf("filed:    %s\n", time.UnixMilli(t.CreatedAt).Format("2006-01-02 15:04:05"))
	fmt.Printf("location: %s\n", t.Location.String())
	fmt.Printf("\n%s\n", t.Description)
}

var rootCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Support tickets for a game server",
	Long:  `A ticket system for player support requests. Players file tickets, staff claim and resolve them, and lifecycle events are relayed to a webhook.`,
}

var createCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "File a new ticket",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		loc := model.Location{World: worldFlag, X: xFlag, Y: yFlag, Z: zFlag, Pitch: pitchFlag, Yaw: yawFlag}
		t, err := a.engine.Create(ctx, a.actor, strings.Join(args, " "), loc)
		if err != nil {
			return err
		}
		fmt.Printf("created ticket #%d\n", t.ID)
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets you are allowed to see",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		tickets, err := a.engine.List(ctx, a.actor)
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			fmt.Println("no open tickets")
			return nil
		}
		for _, t := range tickets {
			fmt.Printf("#%-4d %-20s %-24s %s\n", t.ID, t.Status.Label(t.ClaimedBy), t.OwnerName, t.Description)
		}
		return nil
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := a.engine.Get(ctx, a.actor, id)
		if err != nil {
			return err
		}
		printTicket(t)
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update <id> <description>",
	Short: "Replace a ticket's description",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := a.engine.Update(ctx, a.actor, id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Printf("updated ticket #%d\n", id)
		return nil
	}),
}

var claimCmd = &cobra.Command{
	Use:   "claim <id>",
	Short: "Claim an open ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := a.engine.Claim(ctx, a.actor, id); err != nil {
			return err
		}
		fmt.Printf("claimed ticket #%d\n", id)
		return nil
	}),
}

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := a.engine.Close(ctx, a.actor, id)
		if err != nil {
			return err
		}
		fmt.Printf("ticket #%d %s\n", t.ID, t.Status.Label(""))
		return nil
	}),
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a closed ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := a.engine.Reopen(ctx, a.actor, id); err != nil {
			return err
		}
		fmt.Printf("reopened ticket #%d\n", id)
		return nil
	}),
}

var teleportCmd = &cobra.Command{
	Use:   "teleport <id>",
	Short: "Print the location a ticket was filed at",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := a.engine.Teleport(ctx, a.actor, id)
		if err != nil {
			return err
		}
		fmt.Println(t.Location.String())
		return nil
	}),
}

var groupCmd = &cobra.Command{
	Use:   "group <player-uuid> <role>",
	Short: "Move a player into a role",
	Long:  `Moves a player into the named role, removing them from any other role first. Requires the ticket.group permission.`,
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		target, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid player id %q: %w", args[0], err)
		}
		if err := a.engine.AssignRole(ctx, a.actor, target, args[1]); err != nil {
			return err
		}
		fmt.Printf("moved %s to role %s\n", args[0], args[1])
		return nil
	}),
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the configured roles",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		roles, err := a.engine.Roles(ctx, a.actor)
		if err != nil {
			return err
		}
		for _, r := range roles {
			fmt.Println(r)
		}
		return nil
	}),
}

// menuCmd prints only the subcommands the actor may actually run. It is
// exempt from the command cooldown.
var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Show the commands available to you",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		entries := []struct {
			perm string
			line string
		}{
			{engine.PermCreate, "create <description>    file a new ticket"},
			{engine.PermListDefault, "list                    list your tickets"},
			{engine.PermListAdmin, "list                    list all tickets"},
			{engine.PermUpdate, "update <id> <text>      replace a description"},
			{engine.PermClaim, "claim <id>              claim an open ticket"},
			{engine.PermClose, "close <id>              close a ticket"},
			{engine.PermReopen, "reopen <id>             reopen a closed ticket"},
			{engine.PermTeleport, "teleport <id>           show the filing location"},
			{engine.PermGroup, "group <player> <role>   move a player into a role"},
		}
		seen := map[string]bool{}
		for _, e := range entries {
			if !a.engine.Permitted(ctx, a.actor, e.perm) {
				continue
			}
			name := strings.Fields(e.line)[0]
			if seen[name] {
				continue
			}
			seen[name] = true
			fmt.Println(e.line)
		}
		return nil
	}),
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse tickets interactively",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return tui.Run(a.engine, a.actor, a.gate)
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "as", "", "acting player uuid (required)")
	rootCmd.PersistentFlags().StringVar(&nameFlag, "name", "", "acting player display name")
	rootCmd.PersistentFlags().BoolVar(&operatorFlag, "op", false, "act as a server operator, bypassing permission checks")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "database path override")
	// Only errors if the flag is not registered above.
	_ = rootCmd.MarkPersistentFlagRequired("as")

	createCmd.Flags().StringVar(&worldFlag, "world", "", "world the ticket is filed in")
	createCmd.Flags().Float64Var(&xFlag, "x", 0, "x coordinate")
	createCmd.Flags().Float64Var(&yFlag, "y", 0, "y coordinate")
	createCmd.Flags().Float64Var(&zFlag, "z", 0, "z coordinate")
	createCmd.Flags().Float64Var(&pitchFlag, "pitch", 0, "view pitch")
	createCmd.Flags().Float64Var(&yawFlag, "yaw", 0, "view yaw")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
	rootCmd.AddCommand(teleportCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
