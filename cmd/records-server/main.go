package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strokecare/records/internal/config"
	"github.com/strokecare/records/internal/domain/account"
	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/platform/auth"
	"github.com/strokecare/records/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "records-server",
		Short: "Stroke patient records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(dbCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the records API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openNamespaces loads the configuration and connects to all three
// namespaces.
func openNamespaces(ctx context.Context) (*config.Config, *db.Namespaces, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	ns, err := db.Open(ctx,
		db.NamespaceConfig{URL: cfg.UsersURL(), Schema: cfg.UsersSchema},
		db.NamespaceConfig{URL: cfg.PatientsURL(), Schema: cfg.PatientsSchema},
		db.NamespaceConfig{URL: cfg.AuditURL(), Schema: cfg.AuditSchema},
		cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ns, nil
}

// selectNamespaces returns every namespace, or the one named by key.
func selectNamespaces(ns *db.Namespaces, key string) ([]*db.Namespace, error) {
	if key == "" {
		return ns.All(), nil
	}
	n := ns.ByKey(key)
	if n == nil {
		return nil, fmt.Errorf("unknown namespace %q (want users, patients or audit)", key)
	}
	return []*db.Namespace{n}, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("namespace")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, ns, err := openNamespaces(ctx)
			if err != nil {
				return err
			}
			defer ns.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			targets, err := selectNamespaces(ns, key)
			if err != nil {
				return err
			}
			for _, n := range targets {
				if err := db.EnsureSchema(ctx, n.DB, n.Schema); err != nil {
					return err
				}
			}
			applied, err := db.MigrateAll(ctx, targets, dir)
			for _, n := range targets {
				if count, ok := applied[n.Key]; ok {
					fmt.Printf("%-20s applied %d migration(s)\n", n.Name, count)
				}
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		},
	}
	upCmd.Flags().String("namespace", "", "Only migrate this namespace (users, patients, audit)")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("namespace")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, ns, err := openNamespaces(ctx)
			if err != nil {
				return err
			}
			defer ns.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			targets, err := selectNamespaces(ns, key)
			if err != nil {
				return err
			}
			for _, n := range targets {
				migrator, err := db.NamespaceMigrator(n, dir)
				if err != nil {
					return err
				}
				statuses, err := migrator.Status(ctx, n.Schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status for %s: %w", n.Name, err)
				}

				fmt.Printf("Migration status for %s (schema %s)\n", n.Name, n.Schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				fmt.Println()
			}
			return nil
		},
	}
	statusCmd.Flags().String("namespace", "", "Only show this namespace (users, patients, audit)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			ctx := context.Background()
			cfg, ns, err := openNamespaces(ctx)
			if err != nil {
				return err
			}
			defer ns.Close()

			svc, err := accountService(cfg, ns, newLogger(cfg))
			if err != nil {
				return err
			}
			created, err := svc.EnsureAdmin(ctx, email, password, name)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Admin user %s created.\n", email)
			} else {
				fmt.Printf("User %s already exists; nothing changed.\n", email)
			}
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Admin email address")
	createCmd.Flags().String("password", "", "Admin password")
	createCmd.Flags().String("name", "Administrator", "Admin full name")

	cmd.AddCommand(createCmd)
	return cmd
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Verify every database namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, ns, err := openNamespaces(ctx)
			if err != nil {
				return err
			}
			defer ns.Close()

			res := db.Verify(ctx, ns.All()...)
			printVerify(res)
			if !res.OK() {
				return fmt.Errorf("%s", res.Message)
			}
			return nil
		},
	})
	return cmd
}

func printVerify(res *db.VerifyResult) {
	fmt.Println(res.Message)
	names := make([]string, 0, len(res.Namespaces))
	for name := range res.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := res.Namespaces[name]
		fmt.Printf("  %-20s %-10s schema=%s", name, st.Status, st.Schema)
		if st.Error != "" {
			fmt.Printf(" error=%s", st.Error)
		}
		fmt.Println()
		colls := make([]string, 0, len(st.Counts))
		for c := range st.Counts {
			colls = append(colls, c)
		}
		sort.Strings(colls)
		for _, c := range colls {
			fmt.Printf("    %-18s %d\n", c, st.Counts[c])
		}
	}
}

// accountService builds the account service on the users and audit
// namespaces.
func accountService(cfg *config.Config, ns *db.Namespaces, logger zerolog.Logger) (*account.Service, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer(tokenIssuer, key, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return account.NewService(
		account.NewUserStore(ns.Users),
		account.NewSessionStore(ns.Users),
		audit.NewAccessLogStore(ns.Audit),
		audit.NewDataChangeStore(ns.Audit),
		issuer, logger), nil
}
