package seed

import (
	"fmt"
	"log"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// DryRun builds entities with synthetic IDs and never touches the database.
	DryRun bool
	// SkipBcrypt hashes passwords at the minimum cost for faster runs.
	SkipBcrypt bool
	// MaxDays bounds how far back generated timestamps reach.
	MaxDays          int
	MaxMediaPerPost  int
	FollowsPerUser   int
	CommentsPerPost  int
	ReactionsPerPost int
	// ReplyChance is the probability, 0..1, that a comment receives a reply.
	ReplyChance float64
	// RandomSeed makes runs reproducible when non-zero.
	RandomSeed int64
}

// Presets are named option sets accepted by cmd/seed.
var Presets = map[string]Options{
	"small":  {NumUsers: 10, NumPosts: 30, FollowsPerUser: 3, CommentsPerPost: 2, ReactionsPerPost: 4},
	"medium": {NumUsers: 50, NumPosts: 200, FollowsPerUser: 10, CommentsPerPost: 3, ReactionsPerPost: 8},
	"mega":   {NumUsers: 500, NumPosts: 5000, FollowsPerUser: 40, CommentsPerPost: 5, ReactionsPerPost: 25, SkipBcrypt: true},
}

func (o Options) withDefaults() Options {
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	if o.MaxMediaPerPost <= 0 {
		o.MaxMediaPerPost = 3
	}
	if o.ReplyChance <= 0 {
		o.ReplyChance = 0.3
	}
	return o
}

// Summary counts what a run created.
type Summary struct {
	Users     int
	Posts     int
	Media     int
	Comments  int
	Replies   int
	Reactions int
	Follows   int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d posts=%d media=%d comments=%d replies=%d reactions=%d follows=%d",
		s.Users, s.Posts, s.Media, s.Comments, s.Replies, s.Reactions, s.Follows)
}

// Seeder orchestrates a Factory to populate a whole social graph.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	summary Summary
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts = opts.withDefaults()
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// Summary reports totals created so far.
func (s *Seeder) Summary() Summary {
	return s.summary
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	summary, err := NewSeeder(db, opts).Run()
	if err != nil {
		return err
	}
	log.Printf("🎉 Database seeding completed: %s", summary)
	return nil
}

// Run seeds users, the follow graph, posts and engagement in that order.
func (s *Seeder) Run() (Summary, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.opts.NumUsers, s.opts.NumPosts)

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return s.summary, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return s.summary, fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	if err := s.SeedFollowGraph(users, s.opts.FollowsPerUser); err != nil {
		return s.summary, fmt.Errorf("failed to create follows: %w", err)
	}
	log.Printf("✓ %d follows created", s.summary.Follows)

	posts, err := s.SeedPosts(users, s.opts.NumPosts)
	if err != nil {
		return s.summary, fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	if err := s.SeedEngagement(users, posts); err != nil {
		return s.summary, fmt.Errorf("failed to create engagement: %w", err)
	}
	log.Printf("✓ %d comments, %d replies, %d reactions created",
		s.summary.Comments, s.summary.Replies, s.summary.Reactions)

	return s.summary, nil
}

// seededTables lists every data table, dependents first.
var seededTables = []string{
	"follows", "reactions", "comments", "post_hashtags", "media", "posts", "hashtags", "otps", "users",
}

// ClearAll removes all seeded data. PostgreSQL also resets identity sequences.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	log.Println("🗑️  Clearing existing data...")

	if s.db.Dialector.Name() == "postgres" {
		sql := "TRUNCATE TABLE "
		for i, table := range seededTables {
			if i > 0 {
				sql += ", "
			}
			sql += table
		}
		return s.db.Exec(sql + " RESTART IDENTITY CASCADE").Error
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range seededTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedUsers creates count random users.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return users, err
		}
		users = append(users, user)
		s.summary.Users++

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}
	return users, nil
}

// SeedFollowGraph makes every user follow up to perUser others.
func (s *Seeder) SeedFollowGraph(users []*models.User, perUser int) error {
	if len(users) < 2 || perUser <= 0 {
		return nil
	}
	if perUser > len(users)-1 {
		perUser = len(users) - 1
	}

	for _, follower := range users {
		followed := 0
		for _, idx := range s.pick(len(users), len(users)) {
			if followed == perUser {
				break
			}
			following := users[idx]
			if following.ID == follower.ID {
				continue
			}
			created, err := s.factory.Follow(follower, following)
			if err != nil {
				return err
			}
			followed++
			if created {
				s.summary.Follows++
			}
		}
	}
	return nil
}

// SeedPosts creates count posts authored by random users.
func (s *Seeder) SeedPosts(users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.factory.faker.Number(0, len(users)-1)]
		post, err := s.factory.CreatePost(author)
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
		s.summary.Posts++
		s.summary.Media += len(post.Media)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d posts...", i)
		}
	}
	return posts, nil
}

// SeedEngagement adds comments, one-level replies and reactions to posts.
func (s *Seeder) SeedEngagement(users []*models.User, posts []*models.Post) error {
	if len(users) == 0 {
		return nil
	}
	faker := s.factory.faker

	for _, post := range posts {
		for i := 0; i < s.opts.CommentsPerPost; i++ {
			author := users[faker.Number(0, len(users)-1)]
			comment, err := s.factory.CreateComment(author, post, nil)
			if err != nil {
				return err
			}
			s.summary.Comments++

			if faker.Float64Range(0, 1) < s.opts.ReplyChance {
				replier := users[faker.Number(0, len(users)-1)]
				if _, err := s.factory.CreateComment(replier, post, comment); err != nil {
					return err
				}
				s.summary.Replies++
			}

			if faker.Bool() {
				reactor := users[faker.Number(0, len(users)-1)]
				if err := s.react(reactor, models.Target{Type: models.TargetComment, ID: comment.ID}); err != nil {
					return err
				}
			}
		}

		n := s.opts.ReactionsPerPost
		if n > len(users) {
			n = len(users)
		}
		for _, idx := range s.pick(len(users), n) {
			if err := s.react(users[idx], models.Target{Type: models.TargetPost, ID: post.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) react(user *models.User, target models.Target) error {
	outcome, err := s.factory.React(user, target, "")
	if err != nil {
		return err
	}
	switch outcome {
	case models.ReactionAdded:
		s.summary.Reactions++
	case models.ReactionRemoved:
		s.summary.Reactions--
	}
	return nil
}

// pick returns n distinct indexes in [0, size).
func (s *Seeder) pick(size, n int) []int {
	if n > size {
		n = size
	}
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	s.factory.faker.ShuffleInts(idx)
	return idx[:n]
}
