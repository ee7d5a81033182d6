// Command wallet manages the identities the gateway signs with: it lists
// stored labels, imports cryptogen credentials and exports a stored record.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	database "github.com/tera-bt/teraland-gateway/internal"
	"github.com/tera-bt/teraland-gateway/internal/config"
	"github.com/tera-bt/teraland-gateway/internal/logging"
	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	if err := newRootCmd(cfg, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// connect opens the postgres wallet database; replaced in tests.
var connect = database.Connect

type options struct {
	backend    string
	walletDir  string
	dsn        string
	cryptoRoot string
	domain     string
}

// open builds the same store the server reads from. The returned func
// releases it.
func (o *options) open(ctx context.Context) (*wallet.Wallet, func(), error) {
	switch o.backend {
	case "postgres":
		if o.dsn == "" {
			return nil, nil, errors.New("wallet backend postgres requires a dsn (--dsn or TERALAND_DB_DSN)")
		}
		db, err := connect(ctx, o.dsn)
		if err != nil {
			return nil, nil, err
		}
		return wallet.New(wallet.NewSQLStore(db)), func() { db.Close() }, nil
	case "file", "":
		fs, err := wallet.NewFileStore(o.walletDir)
		if err != nil {
			return nil, nil, err
		}
		return wallet.New(fs), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown wallet backend %q", o.backend)
}

func orgAndUser(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return errors.New("for 'add' & 'export' - org & user are needed")
	}
	return nil
}

func newRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the identities the TeraLand gateway signs with",
		Example: `  wallet list
  wallet add govt Admin
  wallet export buyers buyer1`,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&o.backend, "backend", cfg.Wallet.Backend, "wallet backend: file or postgres")
	root.PersistentFlags().StringVar(&o.walletDir, "wallet", cfg.Wallet.Dir, "wallet directory")
	root.PersistentFlags().StringVar(&o.dsn, "dsn", cfg.DB.DSN, "postgres dsn for the postgres backend")
	root.PersistentFlags().StringVar(&o.cryptoRoot, "crypto-root", cfg.Crypto.Root, "cryptogen peerOrganizations directory")
	root.PersistentFlags().StringVar(&o.domain, "domain", cfg.Crypto.Domain, "organization domain suffix")

	list := &cobra.Command{
		Use:   "list",
		Short: "List identity labels in the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, release, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			labels, err := w.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(labels) == 0 {
				fmt.Fprintln(out, "No identities found in wallet.")
				return nil
			}
			fmt.Fprintln(out, "Identities in Wallet:")
			for _, l := range labels {
				fmt.Fprintf(out, "user: %s\n", l)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <org> <user>",
		Short: "Import a user's cryptogen certificate and key",
		Args:  orgAndUser,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, user := args[0], args[1]
			p := wallet.Provisioner{Root: o.cryptoRoot, Domain: o.domain}
			id, err := p.Load(org, user)
			if err != nil {
				cmd.SilenceUsage = true
				return fmt.Errorf("error reading certificate or key for %s/%s: %w", org, user, err)
			}
			w, release, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			err = w.Import(cmd.Context(), id)
			switch {
			case errors.Is(err, wallet.ErrAlreadyExists):
				fmt.Fprintf(out, "An identity for the user %q already exists in the wallet\n", id.Label)
				return nil
			case err != nil:
				cmd.SilenceUsage = true
				return err
			}
			fmt.Fprintf(out, "Successfully added user %q to the wallet\n", id.Label)
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <org> <user>",
		Short: "Print a stored identity record",
		Args:  orgAndUser,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, user := args[0], args[1]
			w, release, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			id, err := w.Export(cmd.Context(), wallet.Label(org, user, o.domain))
			if errors.Is(err, wallet.ErrNotFound) {
				fmt.Fprintf(out, "Identity %s for %s Org Not found!!!\n", user, org)
				return nil
			}
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}
			b, err := id.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		},
	}

	root.AddCommand(list, add, export)
	return root
}
