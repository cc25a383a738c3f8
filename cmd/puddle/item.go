package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/item"
	"github.com/zulandar/puddle/internal/models"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Item listing commands",
	}

	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemAddCmd())
	return cmd
}

func newItemListCmd() *cobra.Command {
	var (
		configPath string
		query      string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items for sale",
		Long:  "Lists unsold items, newest first. With --owner, lists every item that user owns, sold or not.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)
			ctx := cmd.Context()

			var items []models.Item
			if owner != "" {
				u, err := lookupUser(ctx, gormDB, owner)
				if err != nil {
					return err
				}
				items, err = item.ListByOwner(ctx, gormDB, u.ID)
				if err != nil {
					return err
				}
			} else {
				items, err = item.Browse(ctx, gormDB, item.BrowseFilters{Query: query})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSOLD\tCREATED")
			for _, it := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%t\t%s\n",
					it.ID, truncate(it.Name, 40), it.Category.Name, it.Price, it.IsSold, formatTime(it.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&query, "query", "q", "", "search name and description")
	cmd.Flags().StringVar(&owner, "owner", "", "list items owned by this username")
	return cmd
}

func newItemAddCmd() *cobra.Command {
	var (
		configPath  string
		owner       string
		category    string
		name        string
		description string
		price       float64
		imageURL    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "List a new item for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)
			ctx := cmd.Context()

			u, err := lookupUser(ctx, gormDB, owner)
			if err != nil {
				return err
			}
			var cat models.Category
			if err := gormDB.WithContext(ctx).Where("name = ?", category).First(&cat).Error; err != nil {
				return fmt.Errorf("category %q: %w", category, err)
			}

			it, err := item.Create(ctx, gormDB, item.CreateOpts{
				OwnerID:     u.ID,
				CategoryID:  cat.ID,
				Name:        name,
				Description: description,
				Price:       price,
				ImageURL:    imageURL,
			})
			if err != nil {
				return describeValidation(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created item %d: %s\n", it.ID, it.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&owner, "owner", "", "seller username (required)")
	cmd.Flags().StringVar(&category, "category", "", "category name (required)")
	cmd.Flags().StringVar(&name, "name", "", "item name (required)")
	cmd.Flags().StringVar(&description, "description", "", "item description")
	cmd.Flags().Float64Var(&price, "price", 0, "asking price")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "link to a picture of the item")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("name")
	return cmd
}
