package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run a quiz session",
	Long: "Run a quiz session against the server, or offline with --pack.\n" +
		"Offline, every question is graded on this machine and attempts are kept in memory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := newLogger(cmd)
		defer log.Sync()

		opts := []session.Option{session.WithLogger(log)}
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			opts = append(opts, session.WithTestMode(seed))
		}

		var (
			cat   bank.Catalog
			d     *grading.Dispatcher
			store session.Store
		)
		if path, _ := cmd.Flags().GetString("pack"); path != "" {
			svc := bank.NewService(bank.NewMemoryStore(), bank.WithLogger(log))
			raw, err := readPack(path)
			if err != nil {
				return err
			}
			rep, err := svc.Import(ctx, raw, true, "local")
			if err != nil {
				return err
			}
			for _, e := range rep.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", e)
			}
			if cat, err = svc.Catalog(ctx); err != nil {
				return err
			}
			d = grading.NewDispatcher(grading.NewEngine())
			store = svc
			opts = append(opts, session.WithInstantiator(instance.Generator{}))
		} else {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if cat, err = c.Catalog(ctx); err != nil {
				return err
			}
			d = grading.NewDispatcher(grading.NewEngine(), grading.WithAuthority(c))
			store = c
			opts = append(opts, session.WithInstantiator(c))
		}

		f, err := playFilter(cmd)
		if err != nil {
			return err
		}
		e := session.New(cat.Topics, cat.Questions, d, store, opts...)
		e.SetFilter(f)

		count, _ := cmd.Flags().GetInt("count")
		return runSession(ctx, e, newPrompter(os.Stdin, cmd.OutOrStdout()), count)
	},
}

func playFilter(cmd *cobra.Command) (session.Filter, error) {
	topic, _ := cmd.Flags().GetString("topic")
	raw, _ := cmd.Flags().GetStringSlice("type")
	f := session.Filter{Topic: topic}
	for _, s := range raw {
		t, ok := question.ParseType(s)
		if !ok {
			return f, fmt.Errorf("unknown question type %q", s)
		}
		f.Types = append(f.Types, t)
	}
	return f, nil
}

// runSession presents up to count questions (0: until the learner quits).
func runSession(ctx context.Context, e *session.Engine, p *prompter, count int) error {
	var right, total int
	defer func() {
		if total > 0 {
			fmt.Fprintf(p.out, "\n%d of %d right\n", right, total)
		}
	}()
	for n := 0; count == 0 || n < count; n++ {
		pr, err := e.Next(ctx)
		if errors.Is(err, session.ErrBrokenQuestion) {
			fmt.Fprintln(p.out, "this question is broken, skipping:", err)
			continue
		}
		if err != nil {
			return err
		}
		if pr == nil {
			fmt.Fprintln(p.out, "no questions match")
			return nil
		}
		p.show(pr)

		correct, err := askUntilGraded(ctx, e, p, pr)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		total++
		if correct {
			right++
		}
	}
	return nil
}

func askUntilGraded(ctx context.Context, e *session.Engine, p *prompter, pr *session.Presentation) (bool, error) {
	for {
		a, err := p.answer(pr)
		if err != nil {
			return false, err
		}
		res, err := e.Submit(ctx, pr.ID, a)
		var inc *session.IncompleteError
		switch {
		case errors.As(err, &inc):
			fmt.Fprintln(p.out, "  "+inc.Reason)
			if pr.Walker != nil && pr.Walker.Terminal() && len(pr.Walker.Path()) == 0 {
				return false, nil
			}
			continue
		case errors.Is(err, grading.ErrAuthority):
			fmt.Fprintln(p.out, "  grading failed, try again:", err)
			continue
		case err != nil:
			return false, err
		}

		v := res.Outcome.Verdict
		if res.Outcome.Kind == grading.AwaitingSelfGrade {
			ok, err := p.selfGrade(v.Expected)
			if err != nil {
				return false, err
			}
			if _, err := e.SelfGrade(ctx, pr.ID, ok); err != nil {
				return false, err
			}
			return ok, nil
		}
		printVerdict(p, v)
		return v.Correct, nil
	}
}

func printVerdict(p *prompter, v grading.Verdict) {
	if v.Correct {
		fmt.Fprintln(p.out, "  correct")
	} else {
		fmt.Fprintln(p.out, "  wrong")
		if v.Expected != "" {
			fmt.Fprintln(p.out, "  expected:", v.Expected)
		}
	}
	for _, f := range v.Feedback {
		fmt.Fprintln(p.out, "  "+f)
	}
	if v.Solution != nil && len(v.Solution.Steps) > 0 {
		fmt.Fprintln(p.out, "  "+strings.Join(v.Solution.Steps, "\n  "))
	}
}

func init() {
	playCmd.Flags().String("pack", "", "play a local pack file offline")
	playCmd.Flags().String("topic", "", "only this topic and its subtopics")
	playCmd.Flags().StringSlice("type", nil, "only these question types")
	playCmd.Flags().Int64("seed", 0, "reproducible order and shuffling")
	playCmd.Flags().Int("count", 0, "stop after this many questions")
}

var _ session.Store = (*bank.Service)(nil)
