package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go.pilab.hu/feelscape/localstore"
)

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Record and list mood check-ins",
}

var moodAddCmd = &cobra.Command{
	Use:   "add EMOTION [SCORE] [NOTES...]",
	Short: "Record a mood, score 1 to 5 (derived from the emotion when omitted)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		emotion, score, notes := parseMoodArgs(args)

		store, err := openLocalStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		entry, err := store.AddMood(emotion, score, notes)
		if err != nil {
			return err
		}
		if err := store.SetPreference(localstore.PrefMood, entry.Emotion); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded mood #%d (%d/5).\n", entry.ID, entry.Score)
		return nil
	},
}

var moodTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the scores of the last check-ins, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, _ := cmd.Flags().GetInt("last")

		store, err := openLocalStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		printTrend(cmd.OutOrStdout(), store.Trend(n))
		return nil
	},
}

// parseMoodArgs splits EMOTION [SCORE] [NOTES...]. A second argument that is
// not an integer starts the notes and the score comes from the emotion.
func parseMoodArgs(args []string) (emotion string, score int, notes string) {
	emotion = args[0]
	rest := args[1:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			return emotion, n, strings.Join(rest[1:], " ")
		}
	}
	return emotion, localstore.EmotionScore(emotion), strings.Join(rest, " ")
}

var moodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mood check-ins, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openLocalStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		printMoods(cmd.OutOrStdout(), store.Moods())
		return nil
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Write and read journal entries",
}

var journalAddCmd = &cobra.Command{
	Use:   "add TEXT...",
	Short: "Add a journal entry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLocalStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		entry, ok, err := store.AddJournal(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to save.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved entry #%d.\n", entry.ID)
		return nil
	},
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openLocalStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		printJournal(cmd.OutOrStdout(), store.Journal())
		return nil
	},
}

func printMoods(w io.Writer, moods []localstore.MoodEntry) {
	if len(moods) == 0 {
		fmt.Fprintln(w, "No moods recorded yet.")
		return
	}
	for _, m := range moods {
		fmt.Fprintf(w, "%s  %-12s %d/5", m.Timestamp.Local().Format(time.DateTime), m.Emotion, m.Score)
		if m.Notes != "" {
			fmt.Fprintf(w, "  %s", m.Notes)
		}
		fmt.Fprintln(w)
	}
}

func printTrend(w io.Writer, scores []int) {
	if len(scores) == 0 {
		fmt.Fprintln(w, "No moods recorded yet.")
		return
	}
	for _, score := range scores {
		fmt.Fprintf(w, "%d %s\n", score, strings.Repeat("#", score))
	}
}

func printJournal(w io.Writer, entries []localstore.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries yet.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Text)
	}
}

func init() {
	moodTrendCmd.Flags().Int("last", localstore.TrendLength, "number of check-ins to include")
	moodCmd.AddCommand(moodAddCmd, moodListCmd, moodTrendCmd)
	journalCmd.AddCommand(journalAddCmd, journalListCmd)
}
