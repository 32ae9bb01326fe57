// Command main runs the database seeder for ESPA.
package main

import (
	"flag"
	"log"
	"sort"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/database"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	follows := flag.Int("follows", 8, "Follows per user")
	comments := flag.Int("comments", 3, "Comments per post")
	reactions := flag.Int("reactions", 6, "Reactions per post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing to the database")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	preset := flag.String("preset", "", "Apply a named preset ("+presetNames()+")")
	planPath := flag.String("plan", "", "Apply a YAML seed plan (ignores the numeric flags)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	opts := seed.Options{
		NumUsers:         *numUsers,
		NumPosts:         *numPosts,
		FollowsPerUser:   *follows,
		CommentsPerPost:  *comments,
		ReactionsPerPost: *reactions,
		ShouldClean:      *shouldClean,
		SkipBcrypt:       *fast,
	}
	if *preset != "" {
		p, ok := seed.Presets[*preset]
		if !ok {
			log.Fatalf("Unknown preset %q (available: %s)", *preset, presetNames())
		}
		log.Printf("Applying preset: %s\n", *preset)
		p.ShouldClean = *shouldClean
		p.SkipBcrypt = p.SkipBcrypt || *fast
		opts = p
	}
	opts.DryRun = *dryRun
	opts.RandomSeed = *randomSeed

	var plan *seed.Plan
	if *planPath != "" {
		var err error
		plan, err = seed.LoadPlan(*planPath)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("Applying plan: %s (%d named users)\n", *planPath, len(plan.Users))
	} else {
		log.Printf("Target: %d users, %d posts, clean=%v\n", opts.NumUsers, opts.NumPosts, opts.ShouldClean)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() && !opts.DryRun {
		log.Fatal("❌ Refusing to seed a production database")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var summary seed.Summary
	if plan != nil {
		planOpts := plan.Options()
		planOpts.DryRun = opts.DryRun
		planOpts.SkipBcrypt = opts.SkipBcrypt
		planOpts.RandomSeed = opts.RandomSeed
		summary, err = seed.NewSeeder(db, planOpts).ApplyPlan(plan)
	} else {
		summary, err = seed.NewSeeder(db, opts).Run()
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %s", summary)
	log.Printf("📧 Generated users have the password: %s", seed.DefaultPassword)
}

func presetNames() string {
	names := make([]string, 0, len(seed.Presets))
	for name := range seed.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
