package seed

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"

	"gopkg.in/yaml.v3"
)

// Plan is a YAML description of a seed run. Named users are created first
// so demo accounts have stable credentials; the random section then fills
// the graph around them.
//
//	clean: true
//	users:
//	  - username: alice
//	    admin: true
//	    posts:
//	      - description: "Lisbon at dusk"
//	        hashtags: [travel, sunset]
//	    follows: [bob]
//	  - username: bob
//	random:
//	  users: 20
//	  posts: 80
type Plan struct {
	Clean  bool        `yaml:"clean"`
	Users  []UserPlan  `yaml:"users"`
	Random *RandomPlan `yaml:"random"`
}

// UserPlan describes one named account.
type UserPlan struct {
	Username  string     `yaml:"username"`
	Email     string     `yaml:"email"`
	Password  string     `yaml:"password"`
	FirstName string     `yaml:"first_name"`
	LastName  string     `yaml:"last_name"`
	Bio       string     `yaml:"bio"`
	Admin     bool       `yaml:"admin"`
	Posts     []PostPlan `yaml:"posts"`
	Follows   []string   `yaml:"follows"`
}

// PostPlan describes one post authored by a named user.
type PostPlan struct {
	Description string   `yaml:"description"`
	Location    string   `yaml:"location"`
	Hashtags    []string `yaml:"hashtags"`
	Media       int      `yaml:"media"`
}

// RandomPlan mirrors the numeric Options.
type RandomPlan struct {
	Users            int `yaml:"users"`
	Posts            int `yaml:"posts"`
	FollowsPerUser   int `yaml:"follows_per_user"`
	CommentsPerPost  int `yaml:"comments_per_post"`
	ReactionsPerPost int `yaml:"reactions_per_post"`
	MaxDays          int `yaml:"max_days"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path) // #nosec G304: operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read seed plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a plan and checks usernames and follow references.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("parse seed plan: %w", err)
	}

	known := make(map[string]struct{}, len(plan.Users))
	for i, u := range plan.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
		if _, dup := known[u.Username]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		known[u.Username] = struct{}{}
	}
	for _, u := range plan.Users {
		for _, target := range u.Follows {
			if _, ok := known[target]; !ok {
				return nil, fmt.Errorf("user %q follows unknown user %q", u.Username, target)
			}
		}
	}
	return &plan, nil
}

// Options derives seeder options from the random section.
func (p *Plan) Options() Options {
	opts := Options{ShouldClean: p.Clean}
	if r := p.Random; r != nil {
		opts.NumUsers = r.Users
		opts.NumPosts = r.Posts
		opts.FollowsPerUser = r.FollowsPerUser
		opts.CommentsPerPost = r.CommentsPerPost
		opts.ReactionsPerPost = r.ReactionsPerPost
		opts.MaxDays = r.MaxDays
	}
	return opts
}

// ApplyPlan creates the plan's named users with their posts and follows,
// then runs the random section with the named users mixed into the pool.
func (s *Seeder) ApplyPlan(plan *Plan) (Summary, error) {
	if plan.Clean {
		if err := s.ClearAll(); err != nil {
			return s.summary, err
		}
	}

	byName := make(map[string]*models.User, len(plan.Users))
	named := make([]*models.User, 0, len(plan.Users))
	var posts []*models.Post

	for _, up := range plan.Users {
		up := up
		user, err := s.factory.CreateUser(func(u *models.User) {
			u.Username = up.Username
			u.Email = up.Username + "@example.com"
			if up.Email != "" {
				u.Email = validation.NormalizeEmail(up.Email)
			}
			if up.FirstName != "" {
				u.FirstName = up.FirstName
			}
			if up.LastName != "" {
				u.LastName = up.LastName
			}
			if up.Bio != "" {
				u.Bio = up.Bio
			}
			u.Password = up.Password
			u.IsAdmin = up.Admin
		})
		if err != nil {
			return s.summary, fmt.Errorf("create user %q: %w", up.Username, err)
		}
		byName[up.Username] = user
		named = append(named, user)
		s.summary.Users++

		for _, pp := range up.Posts {
			pp := pp
			post, err := s.factory.CreatePost(user, func(p *models.Post) {
				p.Description = pp.Description
				p.Location = pp.Location
				p.Hashtags = p.Hashtags[:0]
				for _, tag := range pp.Hashtags {
					p.Hashtags = append(p.Hashtags, models.Hashtag{Title: tag})
				}
				if pp.Media < len(p.Media) {
					p.Media = p.Media[:pp.Media]
				}
			})
			if err != nil {
				return s.summary, fmt.Errorf("create post for %q: %w", up.Username, err)
			}
			posts = append(posts, post)
			s.summary.Posts++
			s.summary.Media += len(post.Media)
		}
	}

	for _, up := range plan.Users {
		for _, target := range up.Follows {
			created, err := s.factory.Follow(byName[up.Username], byName[target])
			if err != nil {
				return s.summary, err
			}
			if created {
				s.summary.Follows++
			}
		}
	}

	if plan.Random == nil {
		return s.summary, nil
	}

	random := plan.Options()
	generated, err := s.SeedUsers(random.NumUsers)
	if err != nil {
		return s.summary, err
	}
	pool := append(named, generated...)

	if err := s.SeedFollowGraph(pool, random.FollowsPerUser); err != nil {
		return s.summary, err
	}
	more, err := s.SeedPosts(pool, random.NumPosts)
	if err != nil {
		return s.summary, err
	}
	posts = append(posts, more...)

	s.opts.CommentsPerPost = random.CommentsPerPost
	s.opts.ReactionsPerPost = random.ReactionsPerPost
	if err := s.SeedEngagement(pool, posts); err != nil {
		return s.summary, err
	}
	return s.summary, nil
}
