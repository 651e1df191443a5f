package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/config"
	"github.com/ansonkao/time-tracker/internal/store"
	"github.com/ansonkao/time-tracker/internal/validation"
)

// NewCategoriesCmd creates the categories command with its subcommands.
func NewCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category list",
		Long:  "List, add, remove and reorder the categories used for weekly categorization. Stored in Redis.",
	}
	cmd.AddCommand(newCategoriesListCmd())
	cmd.AddCommand(newCategoriesAddCmd())
	cmd.AddCommand(newCategoriesRemoveCmd())
	cmd.AddCommand(newCategoriesReorderCmd())
	return cmd
}

func openCategoryStore() (*store.CategoryStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	kv, err := store.NewRedisKV(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	closeFn := func() { _ = kv.Close() }
	return store.NewCategoryStore(kv, zap.NewNop()), closeFn, nil
}

func newCategoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, closeFn, err := openCategoryStore()
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := categories.List(context.Background())
			if err != nil {
				return fmt.Errorf("list categories: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No categories configured. Use 'categories add' to create one.")
				return nil
			}
			fmt.Println("Categories:")
			for i, cat := range list {
				fmt.Printf("  %d. %s  %s  (%s)\n", i, cat.Name, cat.Color, cat.ID)
			}
			return nil
		},
	}
}

func newCategoriesAddCmd() *cobra.Command {
	var name, color string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = validation.SanitizeText(name)
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if err := validation.ValidateHexColor(color); err != nil {
				return err
			}

			categories, closeFn, err := openCategoryStore()
			if err != nil {
				return err
			}
			defer closeFn()

			cat, err := categories.Add(context.Background(), name, color)
			if err != nil {
				return fmt.Errorf("add category: %w", err)
			}
			fmt.Printf("Added %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Category name (required)")
	cmd.Flags().StringVar(&color, "color", "", "Category color as #rrggbb (required)")
	return cmd
}

func newCategoriesRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a category by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			id = strings.TrimSpace(id)
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			categories, closeFn, err := openCategoryStore()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := categories.Remove(context.Background(), id); err != nil {
				return fmt.Errorf("remove category: %w", err)
			}
			fmt.Println("Category removed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Category ID (required)")
	return cmd
}

func newCategoriesReorderCmd() *cobra.Command {
	var src, dst int
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move a category to a new position",
		Long:  "Move the category at --from to position --to, using the indexes shown by 'categories list'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, closeFn, err := openCategoryStore()
			if err != nil {
				return err
			}
			defer closeFn()

			ordered, err := categories.Reorder(context.Background(), src, dst)
			if err != nil {
				return fmt.Errorf("reorder categories: %w", err)
			}
			fmt.Println("New order:")
			for i, cat := range ordered {
				fmt.Printf("  %d. %s\n", i, cat.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&src, "from", 0, "Current index of the category")
	cmd.Flags().IntVar(&dst, "to", 0, "Target index")
	return cmd
}
