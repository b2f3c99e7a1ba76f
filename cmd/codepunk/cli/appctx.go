package cli

import (
	"fmt"
	"os"

	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/gitsession"
	"github.com/codepunk/cli/internal/planengine"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/workdir"
)

// appContext bundles the configuration and stores every subcommand needs.
// It is built once per invocation from NewRootCmd's PersistentPreRunE.
type appContext struct {
	configRoot string
	settings   *config.Settings
	repoRoot   string

	planStore  *planstore.Store
	engine     *planengine.Engine
	sessionSt  *gitsession.Store
	sessionSvc *gitsession.Service
	workdirP   *workdir.Provider
}

func newReaperFor(a *appContext) *gitsession.Reaper {
	return gitsession.NewReaper(a.sessionSvc, a.sessionSt)
}

func newAppContext() (*appContext, error) {
	root, err := config.Root()
	if err != nil {
		return nil, fmt.Errorf("resolving config root: %w", err)
	}
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	wd, err := workdir.New()
	if err != nil {
		return nil, fmt.Errorf("initializing working-directory provider: %w", err)
	}

	ps := planstore.New(root)
	engine := planengine.New(ps, repoRoot)

	sessionStore := gitsession.NewStore(root)
	sessionSvc := gitsession.NewService(sessionStore, wd, config.WorktreeBase(settings), settings.KeepFailedSessionBranches)

	return &appContext{
		configRoot: root,
		settings:   settings,
		repoRoot:   repoRoot,
		planStore:  ps,
		engine:     engine,
		sessionSt:  sessionStore,
		sessionSvc: sessionSvc,
		workdirP:   wd,
	}, nil
}
