package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhub/portal/internal/activity"
	activityrepo "github.com/atelierhub/portal/internal/activity/repositoryimpl"
	"github.com/atelierhub/portal/internal/auth"
	authrepo "github.com/atelierhub/portal/internal/auth/repositoryimpl"
	"github.com/atelierhub/portal/internal/comment"
	commentrepo "github.com/atelierhub/portal/internal/comment/repositoryimpl"
	"github.com/atelierhub/portal/internal/config"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/feature"
	featurerepo "github.com/atelierhub/portal/internal/feature/repositoryimpl"
	"github.com/atelierhub/portal/internal/file"
	filerepo "github.com/atelierhub/portal/internal/file/repositoryimpl"
	"github.com/atelierhub/portal/internal/organization"
	orgrepo "github.com/atelierhub/portal/internal/organization/repositoryimpl"
	"github.com/atelierhub/portal/internal/project"
	projectrepo "github.com/atelierhub/portal/internal/project/repositoryimpl"
	"github.com/atelierhub/portal/internal/pushnotification"
	pushsubrepo "github.com/atelierhub/portal/internal/pushsubscription/repositoryimpl"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/internal/sqldb"
	"github.com/atelierhub/portal/internal/task"
	taskrepo "github.com/atelierhub/portal/internal/task/repositoryimpl"
	"github.com/atelierhub/portal/pkg/blob"
	"github.com/atelierhub/portal/pkg/cerr"
	"github.com/atelierhub/portal/pkg/clog"

	server "github.com/atelierhub/portal/internal"
)

func main() {
	app := kingpin.New("portal-server", "Agency client portal server.")
	serveCmd := app.Command("serve", "Run the portal server.").Default()
	sentinelCmd := app.Command("sentinel", "Supervise the portal server, restarting it on crash or binary update.")

	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case serveCmd.FullCommand():
		serve()
	case sentinelCmd.FullCommand():
		runSentinel()
	}
}

func serve() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(clog.NewAttributesHandler(handler))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup database
	db, err := sqldb.Open(ctx, env.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Setup blob store
	var store blob.Store
	switch env.BlobEnv.Type {
	case "s3":
		store, err = blob.NewS3Store(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			slog.Error("failed to create S3 store", "error", err)
			os.Exit(1)
		}
	default:
		store, err = blob.NewLocalStore(env.BaseDir)
		if err != nil {
			slog.Error("failed to create local store", "error", err)
			os.Exit(1)
		}
	}
	// Probe the store so a misconfigured bucket or missing credentials
	// fails at boot instead of on the first upload.
	if _, err := store.Exists(ctx, "startup-probe"); err != nil {
		slog.Error("blob store unreachable", "error", err)
		os.Exit(1)
	}

	// Setup event bus and policy
	bus := eventbus.New()
	policy := rbac.DefaultPolicy()
	if err := policy.Validate(); err != nil {
		slog.Error("invalid permission policy", "error", err)
		os.Exit(1)
	}
	transitions := task.DefaultTransitions()
	if err := transitions.Validate(); err != nil {
		slog.Error("invalid transition table", "error", err)
		os.Exit(1)
	}

	// Setup repositories
	userRepo := authrepo.NewSQLRepository(db)
	orgRepo := orgrepo.NewSQLRepository(db)
	projectRepo := projectrepo.NewSQLRepository(db)
	taskRepo := taskrepo.NewSQLRepository(db)
	commentRepo := commentrepo.NewSQLRepository(db)
	fileRepo := filerepo.NewSQLRepository(db)
	activityRepo := activityrepo.NewSQLRepository(db)

	var featureRepo feature.Repository = featurerepo.NewSQLRepository(db)
	if env.RedisEnv.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     env.RedisEnv.Addr,
			Password: env.RedisEnv.Password,
		})
		featureRepo = feature.NewCachedRepository(featureRepo, client, env.FlagTTL, logger)
	}

	// Seed a fresh database before the server starts taking requests.
	if env.SeedEnv.File != "" {
		if err := seed(ctx, env.SeedEnv.File, orgRepo, userRepo, featureRepo); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Setup servers
	issuer := auth.NewTokenIssuer(env.SessionSecret, env.SessionTTL)
	authServer := auth.NewServer(userRepo, issuer, policy, bus, env.CookieName, env.CookieSecure)
	orgServer := organization.NewServer(orgRepo, policy)
	projectServer := project.NewServer(projectRepo, policy, bus)
	taskServer := task.NewServer(taskRepo, policy, transitions, bus)
	commentServer := comment.NewServer(commentRepo, policy, bus)
	fileServer := file.NewServer(fileRepo, store, policy, bus)
	evaluator := feature.NewEvaluator(featureRepo, logger)
	featureServer := feature.NewServer(featureRepo, evaluator, policy, bus)
	activityServer := activity.NewServer(activityRepo, policy)

	pushSubRepo := pushsubrepo.NewSQLRepository(db)
	sender := pushnotification.NewSender(&env.VAPIDEnv, pushSubRepo, logger)
	pushServer := pushnotification.NewServer(&env.VAPIDEnv, pushSubRepo)

	recorder := activity.NewRecorder(activityRepo, bus, logger)
	go recorder.Run(ctx)

	dispatcher := pushnotification.NewDispatcher(bus, sender)
	go dispatcher.Run(ctx)

	srv := server.NewServer(
		env,
		auth.Middleware(issuer, userRepo, env.CookieName),
		authServer,
		orgServer,
		projectServer,
		taskServer,
		commentServer,
		fileServer,
		featureServer,
		activityServer,
		pushServer,
	)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// seed creates the organization, admin account, and feature flags named in
// the seed file. Records that already exist are left alone, so seeding is
// safe to run on every boot.
func seed(ctx context.Context, path string, orgRepo organization.Repository, userRepo auth.Repository, featureRepo feature.Repository) error {
	s, err := config.LoadSeed(path)
	if err != nil {
		return err
	}

	now := time.Now()
	org, err := orgRepo.GetBySlug(ctx, s.Organization.Slug)
	if err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			return err
		}
		org = &organization.Organization{
			ID:        ulid.Make().String(),
			Name:      s.Organization.Name,
			Slug:      s.Organization.Slug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := orgRepo.Create(ctx, org); err != nil {
			return err
		}
		slog.Info("seeded organization", "slug", org.Slug)
	}

	if _, err := userRepo.GetByEmail(ctx, s.Admin.Email); err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := &auth.User{
			ID:           ulid.Make().String(),
			OrgID:        org.ID,
			Email:        s.Admin.Email,
			Name:         s.Admin.Name,
			Role:         rbac.RoleAdmin,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := userRepo.Create(ctx, admin); err != nil {
			return err
		}
		slog.Info("seeded admin account", "email", admin.Email)
	}

	for _, f := range s.Flags {
		if _, err := featureRepo.Get(ctx, f.Name); err == nil {
			continue
		} else if !cerr.IsCode(err, cerr.NotFound) {
			return err
		}
		if err := featureRepo.Upsert(ctx, &feature.Flag{
			Name:       f.Name,
			Enabled:    f.Enabled,
			EnabledFor: f.EnabledFor,
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			return err
		}
		slog.Info("seeded feature flag", "flag", f.Name, "enabled", f.Enabled)
	}
	return nil
}
