// Package app wires the services, the identity session and the observable
// containers into one object a client process holds for its lifetime.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/auth"
	"github.com/tandm-app/tandm/internal/blob"
	collcontainer "github.com/tandm-app/tandm/internal/collectives/container"
	collservice "github.com/tandm-app/tandm/internal/collectives/service"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/invitations"
	invcontainer "github.com/tandm-app/tandm/internal/invoices/container"
	invservice "github.com/tandm-app/tandm/internal/invoices/service"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
	projcontainer "github.com/tandm-app/tandm/internal/projects/container"
	projservice "github.com/tandm-app/tandm/internal/projects/service"
	taskcontainer "github.com/tandm-app/tandm/internal/tasks/container"
	taskservice "github.com/tandm-app/tandm/internal/tasks/service"
	usercontainer "github.com/tandm-app/tandm/internal/users/container"
	userservice "github.com/tandm-app/tandm/internal/users/service"
)

type Deps struct {
	Store    docstore.Store
	Blobs    blob.Uploader
	Verifier auth.TokenVerifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

type App struct {
	Session *auth.Session

	Collectives *collservice.CollectiveService
	Projects    *projservice.ProjectService
	Tasks       *taskservice.TaskService
	Invoices    *invservice.InvoiceService
	Profiles    *userservice.ProfileService
	Invitations *invitations.Resolver

	// CollectiveList and Profile follow the session once Start is called.
	CollectiveList *collcontainer.List
	Profile        *usercontainer.Profile

	log *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped sync.WaitGroup
}

func New(dep Deps) *App {
	log := logging.OrNop(dep.Log)
	blobs := dep.Blobs
	if blobs == nil {
		blobs = blob.Disabled{}
	}

	a := &App{
		Session:     auth.NewSession(dep.Verifier, log),
		Collectives: collservice.NewCollectiveService(dep.Store, log, dep.Metrics),
		Projects:    projservice.NewProjectService(dep.Store, log, dep.Metrics),
		Tasks:       taskservice.NewTaskService(dep.Store, log, dep.Metrics),
		Invoices:    invservice.NewInvoiceService(dep.Store, log, dep.Metrics),
		Profiles:    userservice.NewProfileService(dep.Store, blobs, log, dep.Metrics),
		log:         log,
	}
	a.Invitations = invitations.NewResolver(a.Profiles, a.Collectives, log, dep.Metrics)
	a.CollectiveList = collcontainer.NewList(a.Collectives, a.Invitations, a.Session, log)
	a.Profile = usercontainer.NewProfile(a.Profiles, a.Session, log)
	return a
}

// Start subscribes the identity-scoped containers to the session. They
// refresh on sign in and clear on sign out until Stop.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.watch(ctx, a.CollectiveList.Watch)
	a.watch(ctx, a.Profile.Watch)
	a.log.Info("app started")
}

func (a *App) watch(ctx context.Context, fn func(context.Context, <-chan auth.Event)) {
	events, unsubscribe := a.Session.Subscribe()
	a.stopped.Add(1)
	go func() {
		defer a.stopped.Done()
		defer unsubscribe()
		fn(ctx, events)
	}()
}

// Stop ends the session watchers and waits for them to return.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.stopped.Wait()
	a.log.Info("app stopped")
}

func (a *App) NewProjectList(collectiveID string) *projcontainer.List {
	return projcontainer.NewList(a.Projects, collectiveID, a.log)
}

func (a *App) NewTaskList(projectID string) *taskcontainer.List {
	return taskcontainer.NewList(a.Tasks, projectID, a.log)
}

func (a *App) NewInvoiceList(collectiveID string) *invcontainer.List {
	return invcontainer.NewList(a.Invoices, collectiveID, a.log)
}

func (a *App) NewMemberList() *usercontainer.MemberList {
	return usercontainer.NewMemberList(a.Profiles, a.log)
}
