package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/dive/internal/formatter"
	"github.com/desertthunder/dive/internal/repositories"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) preferences() (*repositories.PreferenceRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewPreferenceRepository(db), nil
}

// PrefsShow prints the saved run settings.
func (r *Runner) PrefsShow(ctx context.Context, cmd *cli.Command) error {
	prefs, err := r.preferences()
	if err != nil {
		return err
	}

	values, err := prefs.All()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(values, true)
	}
	if len(values) == 0 {
		return r.writePlain("No saved preferences\n")
	}
	for _, key := range repositories.PreferenceKeys {
		if value, ok := values[key]; ok {
			r.writePlain("%-20s %s\n", key, value)
		}
	}
	return nil
}

// PrefsSet saves a single setting after checking that the resulting run settings are still valid.
func (r *Runner) PrefsSet(ctx context.Context, cmd *cli.Command) error {
	key, value := cmd.StringArg("key"), cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}
	if !slices.Contains(repositories.PreferenceKeys, key) {
		return fmt.Errorf("%w: unknown preference %q (want one of %v)", shared.ErrInvalidArgument, key, repositories.PreferenceKeys)
	}

	prefs, err := r.preferences()
	if err != nil {
		return err
	}

	base, err := r.basePipeline()
	if err != nil {
		return err
	}

	previous, getErr := prefs.Get(key)
	if err := prefs.Set(key, value); err != nil {
		return err
	}
	if _, err := prefs.ApplyPipeline(base); err != nil {
		if getErr == nil {
			prefs.Set(key, previous)
		} else {
			prefs.Delete(key)
		}
		return fmt.Errorf("%w: %s=%q: %v", shared.ErrInvalidArgument, key, value, err)
	}

	return r.writePlain("✓ %s = %s\n", key, value)
}

// PrefsReset forgets every saved setting.
func (r *Runner) PrefsReset(ctx context.Context, cmd *cli.Command) error {
	prefs, err := r.preferences()
	if err != nil {
		return err
	}
	for _, key := range repositories.PreferenceKeys {
		if err := prefs.Delete(key); err != nil {
			return err
		}
	}
	return r.writePlain("✓ Preferences reset\n")
}

// History lists previous runs, newest first.
//
// With --mark-interrupted, runs still marked running are marked failed first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	runs := repositories.NewRunRepository(db)

	if cmd.Bool("mark-interrupted") {
		n, err := runs.MarkInterrupted()
		if err != nil {
			return err
		}
		r.logger.Info("marked interrupted runs", "count", n)
	}

	records, err := runs.List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if len(records) == 0 && format == formatter.Text {
		return r.writePlain("No runs yet\n")
	}

	out, err := formatter.History(records, format)
	if err != nil {
		return err
	}
	return r.writeBytes(out)
}
