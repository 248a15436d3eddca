package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"marathon-trainer/internal/app"
	"marathon-trainer/internal/coach"
	"marathon-trainer/internal/config"
	"marathon-trainer/internal/llm"
	"marathon-trainer/internal/metrics"
	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/store"
	"marathon-trainer/internal/trainer"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("TRAINER_CONFIG")
	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = home + "/.marathon-trainer/config.yaml"
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.State.Path)
	if err != nil {
		log.Fatalf("Failed to open state: %v", err)
	}

	var textGen llm.TextGenerator
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Model)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer client.Close()
		textGen = client
	case "groq":
		textGen = llm.NewGroqClient(cfg.LLM.GroqAPIKey)
	}

	var c *coach.Coach
	if textGen != nil {
		c = coach.New(textGen)
	}

	var metricsStore *metrics.Store
	if cfg.Metrics.Enabled {
		db, err := metrics.OpenDB(cfg.Metrics.Path)
		if err != nil {
			log.Fatalf("Failed to initialize metrics database: %v", err)
		}
		metricsStore = metrics.NewStore(db)
		defer metricsStore.Close()
	}

	application := app.NewApp(st, c, metricsStore, cfg)

	if len(os.Args) < 2 {
		fmt.Println(application.Overview())
		return
	}

	switch os.Args[1] {
	case "overview":
		fmt.Println(application.Overview())

	case "generate":
		msg, err := application.GenerateLocalPlan()
		if err != nil {
			log.Fatalf("Generate failed: %v", err)
		}
		fmt.Println(msg)

	case "coach":
		msg, err := application.Chat(ctx, strings.Join(os.Args[2:], " "))
		if err != nil {
			log.Fatalf("Coach failed: %v", err)
		}
		fmt.Println(msg)

	case "advise":
		msg, err := application.Advise(ctx, strings.Join(os.Args[2:], " "))
		if err != nil {
			log.Fatalf("Advise failed: %v", err)
		}
		fmt.Println(msg)

	case "plan":
		fmt.Println(trainer.Summarize(application.Store.Plan()))

	case "plan-import":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer plan-import <file>")
		}
		blob, err := os.ReadFile(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", os.Args[2], err)
		}
		msg, err := application.ImportPlanText(string(blob))
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Println(msg)

	case "log":
		runLog(application, os.Args[2:])

	case "done":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer done <YYYY-MM-DD> [time]")
		}
		timeSec := 0
		if len(os.Args) > 3 {
			if timeSec, err = pace.ParseClock(os.Args[3]); err != nil {
				log.Fatalf("Bad time: %v", err)
			}
		}
		msg, err := application.CompleteDay(os.Args[2], timeSec)
		if err != nil {
			log.Fatalf("Complete failed: %v", err)
		}
		fmt.Println(msg)

	case "runs":
		for _, r := range application.Store.Runs() {
			line := fmt.Sprintf("%s  %s  %5.1f km", r.ID, r.Date(), r.ActualKm)
			if r.ActualTimeSec > 0 {
				line += fmt.Sprintf("  %s  (%s/km)", pace.FormatClock(r.ActualTimeSec),
					pace.FormatPace(pace.PerKm(r.ActualTimeSec, r.ActualKm)))
			}
			if r.Notes != "" {
				line += "  " + r.Notes
			}
			fmt.Println(line)
		}

	case "edit-workout":
		editCmd := flag.NewFlagSet("edit-workout", flag.ExitOnError)
		date := editCmd.String("date", "", "ISO date")
		typ := editCmd.String("type", "easy", "Workout type")
		km := editCmd.Float64("km", 0, "Planned distance in km")
		notes := editCmd.String("notes", "", "Notes, defaults per type")
		editCmd.Parse(os.Args[2:])
		msg, err := application.EditWorkout(*date, *typ, *km, *notes)
		if err != nil {
			log.Fatalf("Edit failed: %v", err)
		}
		fmt.Println(msg)

	case "delete-workout":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer delete-workout <YYYY-MM-DD>")
		}
		msg, err := application.RemoveWorkout(os.Args[2])
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println(msg)

	case "undone":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer undone <YYYY-MM-DD>")
		}
		msg, err := application.Uncomplete(os.Args[2])
		if err != nil {
			log.Fatalf("Undone failed: %v", err)
		}
		fmt.Println(msg)

	case "run-time":
		if len(os.Args) < 4 {
			log.Fatal("Usage: marathon-trainer run-time <run-id> <mm:ss or h:mm:ss>")
		}
		sec, err := pace.ParseClock(os.Args[3])
		if err != nil {
			log.Fatalf("Bad time: %v", err)
		}
		if err := application.SetRunTime(os.Args[2], sec); err != nil {
			log.Fatalf("Run-time failed: %v", err)
		}
		fmt.Println("Run time updated.")

	case "delete-run":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer delete-run <id>")
		}
		if err := application.DeleteRun(os.Args[2]); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println("Run deleted.")

	case "records":
		fmt.Println(application.RecordsText())

	case "stats":
		fmt.Println(application.StatsText())

	case "set":
		runSet(application, os.Args[2:])

	case "export":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer export <file>")
		}
		if err := application.Export(os.Args[2]); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("State exported to %s\n", os.Args[2])

	case "import":
		if len(os.Args) < 3 {
			log.Fatal("Usage: marathon-trainer import <file>")
		}
		if err := application.Import(os.Args[2]); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Println("State imported.")

	case "metrics":
		if metricsStore == nil {
			log.Fatal("Metrics are disabled; set metrics.enabled in the config.")
		}
		usage, err := metricsStore.GetDailyUsage(ctx, 7)
		if err != nil {
			log.Fatalf("Failed to fetch metrics: %v", err)
		}
		for _, d := range usage {
			fmt.Printf("%s  %d calls  %d prompt + %d completion tokens\n",
				d.Date, d.Calls, d.TotalPrompt, d.TotalCompletion)
		}

	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])
		if metricsStore == nil {
			log.Fatal("Metrics are disabled; set metrics.enabled in the config.")
		}
		affected, err := metricsStore.Cleanup(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Removed %d old metric records.\n", affected)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runLog(application *app.App, args []string) {
	logCmd := flag.NewFlagSet("log", flag.ExitOnError)
	km := logCmd.Float64("km", 0, "Distance in km")
	clock := logCmd.String("time", "", "Duration, mm:ss or h:mm:ss")
	date := logCmd.String("date", "", "ISO date or datetime, defaults to now")
	notes := logCmd.String("notes", "", "Free-form notes")
	logCmd.Parse(args)

	timeSec := 0
	if *clock != "" {
		var err error
		if timeSec, err = pace.ParseClock(*clock); err != nil {
			log.Fatalf("Bad time: %v", err)
		}
	}
	dateTime := *date
	if dateTime != "" && len(dateTime) == 10 {
		dateTime += "T12:00:00"
	}

	run, err := application.LogRun(dateTime, *km, timeSec, *notes)
	if err != nil {
		log.Fatalf("Log failed: %v", err)
	}
	fmt.Printf("Logged %.1f km on %s.\n", run.ActualKm, run.Date())
}

func runSet(application *app.App, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: marathon-trainer set <race|goal|max-hr|runs-per-week|taper|longest> ...")
	}
	st := application.Store
	switch args[0] {
	case "race":
		setCmd := flag.NewFlagSet("set race", flag.ExitOnError)
		name := setCmd.String("name", "", "Race name")
		date := setCmd.String("date", "", "Race start, RFC 3339")
		km := setCmd.Float64("km", 0, "Race distance in km")
		target := setCmd.String("time", "", "Goal time, h:mm:ss")
		setCmd.Parse(args[1:])

		race := trainer.RaceGoal{Name: *name, TargetKm: *km}
		if *date != "" {
			race.DateTime = date
		}
		if *target != "" {
			sec, err := pace.ParseClock(*target)
			if err != nil {
				log.Fatalf("Bad goal time: %v", err)
			}
			race.TargetTimeSec = &sec
		}
		st.SetRace(race)

	case "goal":
		var km float64
		if _, err := fmt.Sscanf(argAt(args, 1), "%g", &km); err != nil {
			log.Fatal("Usage: marathon-trainer set goal <km>")
		}
		st.SetWeeklyGoal(km)

	case "max-hr":
		var bpm int
		if _, err := fmt.Sscanf(argAt(args, 1), "%d", &bpm); err != nil {
			log.Fatal("Usage: marathon-trainer set max-hr <bpm>")
		}
		st.SetMaxHR(&bpm)

	case "runs-per-week":
		var n int
		if _, err := fmt.Sscanf(argAt(args, 1), "%d", &n); err != nil {
			log.Fatal("Usage: marathon-trainer set runs-per-week <1-7>")
		}
		st.SetRunsPerWeek(n)

	case "taper":
		var n int
		if _, err := fmt.Sscanf(argAt(args, 1), "%d", &n); err != nil {
			log.Fatal("Usage: marathon-trainer set taper <1-4>")
		}
		st.SetTaperWeeks(n)

	case "longest":
		var km float64
		if _, err := fmt.Sscanf(argAt(args, 1), "%g", &km); err != nil {
			log.Fatal("Usage: marathon-trainer set longest <km>")
		}
		st.SetLongestRunEver(&km)

	case "record":
		var km float64
		if _, err := fmt.Sscanf(argAt(args, 1), "%g", &km); err != nil {
			log.Fatal("Usage: marathon-trainer set record <km> <h:mm:ss or ->")
		}
		var sec *int
		if clock := argAt(args, 2); clock != "" && clock != "-" {
			v, err := pace.ParseClock(clock)
			if err != nil {
				log.Fatalf("Bad time: %v", err)
			}
			sec = &v
		}
		if err := st.SetRecord(km, sec); err != nil {
			log.Fatalf("Set record failed: %v", err)
		}

	default:
		log.Fatalf("Unknown setting: %s", args[0])
	}

	if err := st.Save(); err != nil {
		log.Fatalf("Save failed: %v", err)
	}
	fmt.Println("Saved.")
}

func argAt(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i]
}

func printUsage() {
	fmt.Println("Usage: marathon-trainer <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  overview           Countdown, weekly progress and upcoming workouts (default)")
	fmt.Println("  generate           Build a plan locally from the stored parameters")
	fmt.Println("  coach <message>    Chat with the AI coach; plan requests update the calendar")
	fmt.Println("  advise <message>   Ask the coach a question without touching the plan")
	fmt.Println("  plan               Show the training calendar week by week")
	fmt.Println("  plan-import <file> Read workouts from a saved coach reply")
	fmt.Println("  edit-workout [...] Hand-place a workout (-date, -type, -km, -notes)")
	fmt.Println("  delete-workout <d> Remove the planned workout on a date")
	fmt.Println("  log -km N [...]    Log a run (-time, -date, -notes)")
	fmt.Println("  done <date> [time] Mark the planned workout on a date complete")
	fmt.Println("  undone <date>      Revert a completion")
	fmt.Println("  run-time <id> <t>  Correct the duration of a logged run")
	fmt.Println("  runs               List logged runs")
	fmt.Println("  delete-run <id>    Remove a logged run")
	fmt.Println("  records            Personal records")
	fmt.Println("  stats              Weekly totals, HR zones, race countdown")
	fmt.Println("  set <key> <value>  Update race, goal, max-hr, runs-per-week, taper, longest, record")
	fmt.Println("  export <file>      Write the full state snapshot")
	fmt.Println("  import <file>      Replace the state with a snapshot")
	fmt.Println("  metrics            Show coach token usage for the last week")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
