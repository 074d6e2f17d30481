package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/assetplug/internal/app"
	"github.com/dshills/assetplug/internal/asset"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAssetCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "asset",
		Aliases: []string{"assets"},
		Short:   "Manage assets",
		Example: `  # Record a deposit
  assetplug asset add "Savings" 25000 --type bank --currency usd --tag emergency

  # Change the value and a metadata field
  assetplug asset update 5f0c... --value 26000 --meta bank.branch=central

  # Record a sale and show the value history
  assetplug asset txn 5f0c... sell 18000 --note "car repair"
  assetplug asset history 5f0c...

  # Totals by type and currency
  assetplug asset summary`,
	}

	cmd.AddCommand(
		newAssetAddCommand(c),
		newAssetUpdateCommand(c),
		newAssetDeleteCommand(c),
		newAssetShowCommand(c),
		newAssetListCommand(c),
		newAssetSearchCommand(c),
		newAssetSummaryCommand(c),
		newAssetTxnCommand(c),
		newAssetHistoryCommand(c),
	)
	return cmd
}

func newAssetAddCommand(c *cli) *cobra.Command {
	var (
		typ      string
		currency string
		desc     string
		tags     []string
		meta     string
	)

	cmd := &cobra.Command{
		Use:   "add <name> <value>",
		Short: "Add an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			req := app.CreateAssetRequest{
				Name:     args[0],
				Type:     typ,
				Value:    value,
				Currency: currency,
				Tags:     tags,
			}
			if cmd.Flags().Changed("desc") {
				req.Description = &desc
			}
			if meta != "" {
				req.Metadata = json.RawMessage(meta)
			}

			a, err := c.app.CreateAsset(cmd.Context(), req)
			if err != nil {
				return err
			}
			renderOK(cmd.OutOrStdout(), "asset %s created", a.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "other", "asset type (cash, bank, stock, fund, bond, property, car, crypto, gold, other); other names are kept as a label")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code (default CNY)")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&meta, "meta", "", "metadata as a JSON object")
	return cmd
}

func newAssetUpdateCommand(c *cli) *cobra.Command {
	var (
		name      string
		value     string
		currency  string
		desc      string
		tags      []string
		setMeta   []string
		unsetMeta []string
		note      string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an asset",
		Long: `Update the given fields of an asset. Metadata paths use dot syntax,
for example --meta broker.name=acme. Values that parse as JSON are stored as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			req := app.UpdateAssetRequest{ID: id, DeleteMeta: unsetMeta, Note: note}
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("value") {
				v, err := parseValue(value)
				if err != nil {
					return err
				}
				req.Value = &v
			}
			if flags.Changed("currency") {
				req.Currency = &currency
			}
			if flags.Changed("desc") {
				req.Description = &desc
			}
			if flags.Changed("tag") {
				req.Tags = tags
			}
			if len(setMeta) > 0 {
				req.SetMeta = make(map[string]string, len(setMeta))
				for _, kv := range setMeta {
					path, val, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --meta %q: want path=value", kv)
					}
					req.SetMeta[path] = val
				}
			}

			a, err := c.app.UpdateAsset(cmd.Context(), req)
			if err != nil {
				return err
			}
			renderAsset(cmd.OutOrStdout(), a)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	cmd.Flags().StringVar(&currency, "currency", "", "new currency code")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "new description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringArrayVar(&setMeta, "meta", nil, "set a metadata path (path=value, repeatable)")
	cmd.Flags().StringArrayVar(&unsetMeta, "unset-meta", nil, "remove a metadata path (repeatable)")
	cmd.Flags().StringVar(&note, "note", "", "note for the value history when --value changes it")
	return cmd
}

func newAssetDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an asset",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.app.DeleteAsset(cmd.Context(), id); err != nil {
				return err
			}
			renderOK(cmd.OutOrStdout(), "asset %s deleted", id)
			return nil
		},
	}
}

func newAssetShowCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.app.Asset(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderAsset(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func newAssetListCommand(c *cli) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List assets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				assets []*asset.Asset
				err    error
			)
			if cmd.Flags().Changed("type") {
				assets, err = c.app.AssetsByType(cmd.Context(), typ)
			} else {
				assets, err = c.app.Assets(cmd.Context())
			}
			if err != nil {
				return err
			}
			renderAssets(cmd.OutOrStdout(), assets)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "only list assets of this type")
	return cmd
}

func newAssetSearchCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search names, descriptions and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := c.app.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderAssets(cmd.OutOrStdout(), assets)
			return nil
		},
	}
}

func newAssetSummaryCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Total assets by type and currency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := c.app.Summary(cmd.Context())
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func newAssetTxnCommand(c *cli) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:     "txn <id> <type> <new-value>",
		Aliases: []string{"transaction"},
		Short:   "Record a transaction and set the asset to its new value",
		Long: `Record a transaction against an asset. The type is one of buy, sell,
value_change, income, expense or transfer. The asset value becomes <new-value>
and the previous value is kept in the history.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := parseValue(args[2])
			if err != nil {
				return err
			}

			tx, err := c.app.AddTransaction(cmd.Context(), app.TransactionRequest{
				AssetID: id,
				Type:    args[1],
				Value:   value,
				Note:    note,
			})
			if err != nil {
				return err
			}
			renderOK(cmd.OutOrStdout(), "%s recorded: %.2f → %.2f", tx.Type, tx.AmountBefore, tx.AmountAfter)
			return nil
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "note")
	return cmd
}

func newAssetHistoryCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the transactions of an asset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			txs, err := c.app.Transactions(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderTransactions(cmd.OutOrStdout(), txs)
			return nil
		},
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid asset id %q: %w", s, err)
	}
	return id, nil
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}
