package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/record"
	"github.com/alexkarev/homekeeper/internal/remotestore"
	"github.com/alexkarev/homekeeper/internal/syncer"
)

// Run dispatches one command. Usage is printed for an unknown or missing
// command; the error return is for the command's own failure.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}

	switch args[0] {
	case "backup":
		return a.Backup(ctx)
	case "restore":
		return a.Restore(ctx)
	case "estimate":
		return a.Estimate(ctx)
	case "status":
		return a.Status(ctx)
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n", args[0])
		a.usage()
		return nil
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: homekeeper <command>")
	fmt.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  backup     upload the local inventory to the remote store")
	fmt.Fprintln(a.out, "  restore    merge the remote backup into the local inventory")
	fmt.Fprintln(a.out, "  estimate   show how much data a backup would transfer")
	fmt.Fprintln(a.out, "  status     show the last backup in the remote store")
}

// progressPrinter reports phase transitions on a.out.
func (a *App) progressPrinter() syncer.Observer {
	var last syncer.Phase
	return func(p syncer.Progress) {
		if p.Phase == last {
			return
		}
		last = p.Phase
		fmt.Fprintf(a.out, "... %s\n", p.Phase)
	}
}

// Backup uploads every local item and category to the remote store.
func (a *App) Backup(ctx context.Context) error {
	items, err := a.local.FetchAllItems(ctx)
	if err != nil {
		return fmt.Errorf("reading local items: %w", err)
	}
	cats, err := a.local.FetchAllCategories(ctx)
	if err != nil {
		return fmt.Errorf("reading local categories: %w", err)
	}

	fmt.Fprintf(a.out, "Backing up %d items and %d categories (about %s)\n",
		len(items), len(cats), a.orch.EstimateTransferSize(items))

	a.orch.SetObserver(a.progressPrinter())
	result, err := a.orch.Backup(ctx, items, cats)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Backup complete: %d items, %d categories\n",
		result.ItemsSaved, result.CategoriesSaved)
	for _, f := range result.Failures {
		fmt.Fprintf(a.out, "  failed: %s (%s)\n", f.ID, f.Reason)
	}
	return nil
}

// Restore merges the latest remote backup into the local store.
func (a *App) Restore(ctx context.Context) error {
	a.orch.SetObserver(a.progressPrinter())
	result, err := a.orch.Restore(ctx)
	if errors.Is(err, common.ErrBackupNotFound) {
		fmt.Fprintln(a.out, "No backup found in the remote store.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Restore complete: %d items, %d categories\n",
		result.ItemsRestored, result.CategoriesRestored)
	if result.SkippedRecords > 0 {
		fmt.Fprintf(a.out, "  skipped %d unreadable records\n", result.SkippedRecords)
	}
	return nil
}

// Estimate prints the approximate upload size of a backup without running one.
func (a *App) Estimate(ctx context.Context) error {
	items, err := a.local.FetchAllItems(ctx)
	if err != nil {
		return fmt.Errorf("reading local items: %w", err)
	}
	fmt.Fprintf(a.out, "Estimated transfer size for %d items: %s\n",
		len(items), a.orch.EstimateTransferSize(items))
	return nil
}

// Status prints the metadata of the last backup in the remote store.
func (a *App) Status(ctx context.Context) error {
	mdRec, err := remotestore.FetchMetadata(ctx, a.remote)
	if err != nil {
		return fmt.Errorf("reading backup metadata: %w", err)
	}
	if mdRec == nil {
		fmt.Fprintln(a.out, "No backup found in the remote store.")
		return nil
	}
	md, err := record.MetadataFromRecord(mdRec)
	if err != nil {
		return fmt.Errorf("decoding backup metadata: %w", err)
	}

	fmt.Fprintf(a.out, "Last backup: %s\n", md.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(a.out, "  device:     %s\n", md.DeviceName)
	fmt.Fprintf(a.out, "  app:        %s\n", md.AppVersion)
	fmt.Fprintf(a.out, "  items:      %d\n", md.ItemCount)
	fmt.Fprintf(a.out, "  categories: %d\n", md.CategoryCount)
	fmt.Fprintf(a.out, "  status:     %s\n", md.Status)
	return nil
}
