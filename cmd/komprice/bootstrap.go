package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
)

// indexManager is the part of the listing index client bootstrap needs.
type indexManager interface {
	CreateIndexWithMapping(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
}

func prepareListingIndex(ctx context.Context, idx indexManager, reset bool) error {
	if reset {
		if err := idx.DeleteIndex(ctx); err != nil {
			return err
		}
	}
	return idx.CreateIndexWithMapping(ctx)
}

func newBootstrapCommand() *cobra.Command {
	var resetIndex bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed categories from the taxonomy and create the listing index",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			doc, err := a.taxonomy()
			if err != nil {
				return err
			}
			db, err := a.database(ctx)
			if err != nil {
				return err
			}
			created, err := postgres.NewCategoryRepository(db).EnsureCategories(ctx, doc.UniversalSlugs(), doc.Tree())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "categories created: %d\n", created)

			idx, err := a.listingIndex()
			if err != nil {
				return err
			}
			if idx == nil {
				if resetIndex {
					a.log.Warn("no elasticsearch address configured, --reset-index ignored")
				}
				return nil
			}
			return prepareListingIndex(ctx, idx, resetIndex)
		},
	}
	cmd.Flags().BoolVar(&resetIndex, "reset-index", false, "drop and recreate the listing index")
	return cmd
}
