// Copyright 2023 Listing Notifier <dev@listingnotifier.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpserver implements the service's JSON HTTP API.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"

	"github.com/listingnotifier/scraper/api"
	"github.com/listingnotifier/scraper/services/web/runs"
	runsbackend "github.com/listingnotifier/scraper/services/web/runs/backend"
	"github.com/listingnotifier/scraper/utils/metrics"
	"github.com/listingnotifier/scraper/version"
)

var log = logrus.WithField("component", "web")

var infos = openapi.Info{
	Title: "Listing Scraper",
	Description: "The Listing Scraper logs into the Property Control Center portal with" +
		" user-supplied credentials, runs a saved power search and returns the exported" +
		" listings as JSON.\n" +
		"\n" +
		"Scrapes can run synchronously ([/scrape](#tag/Scraping)) or as stored" +
		" background runs ([/runs](#tag/Runs)).\n",
	Version: version.Version,
}

// Engine is the scrape engine the API drives.
type Engine interface {
	TestLogin(ctx context.Context, request api.LoginRequest) error
	Scrape(ctx context.Context, request api.ScrapeRequest) (*api.ScrapeResult, error)
}

type Server struct {
	http.Server
	engine     Engine
	runManager *runs.Manager
	profiles   map[string]api.ScrapeDefaults
	secret     string

	gin  *gin.Engine
	fizz *fizz.Fizz
}

func New(
	port uint,
	engine Engine,
	runManager *runs.Manager,
	profiles map[string]api.ScrapeDefaults,
	secret string,
) (*Server, error) {
	// Debug mode can be helpful during development
	gin.SetMode(gin.ReleaseMode)
	//gin.SetMode(gin.DebugMode)

	tonic.SetErrorHook(tonicErrorHook)

	ginEngine := gin.New()
	fizzEngine := fizz.NewFromEngine(ginEngine)

	server := &Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: fizzEngine,
		},
		engine:     engine,
		runManager: runManager,
		profiles:   profiles,
		secret:     secret,
		gin:        ginEngine,
		fizz:       fizzEngine,
	}

	server.gin.HandleMethodNotAllowed = true

	// Allows all origins
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true

	server.fizz.Use(cors.New(corsConfig))

	// Use a custom error handler
	server.fizz.Use(ginErrorHandlerMiddleware)

	// Use the custom logger middleware
	server.fizz.Use(ginLoggerMiddleware)

	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	server.fizz.Use(gin.Recovery())

	server.fizz.GET("/", []fizz.OperationOption{
		fizz.Summary("Retrieve information about this API"),
	}, tonic.Handler(server.getInfo, http.StatusOK))

	server.fizz.GET("/health", []fizz.OperationOption{
		fizz.Summary("Service liveness check"),
	}, tonic.Handler(server.getHealth, http.StatusOK))

	server.fizz.GET("/openapi.json", []fizz.OperationOption{
		fizz.Summary("Retrieve the open api specification"),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, server.fizz.OpenAPI(&infos, "json"))

	server.gin.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := server.fizz.Group(
		"/auth",
		"Authentication",
		"Exchange the API secret for a short-lived token.",
	)
	authGroup.Use(server.authMiddleware)
	authGroup.POST("/token", []fizz.OperationOption{
		fizz.Summary("Issue a short-lived access token"),
		fizz.Response("401", "Invalid API secret", httpError{}, nil, nil),
	}, tonic.Handler(server.issueToken, http.StatusOK))

	scrapeGroup := server.fizz.Group(
		"/",
		"Scraping",
		"Drive the portal with user-supplied credentials.",
	)
	scrapeGroup.Use(server.authMiddleware)
	scrapeGroup.POST("/test-login", []fizz.OperationOption{
		fizz.Summary("Check portal credentials"),
		fizz.Description("Drives a real browser login against the portal without scraping anything."),
		fizz.Response("400", "Login failed", httpError{}, nil, nil),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
	}, tonic.Handler(server.testLogin, http.StatusOK))
	scrapeGroup.POST("/scrape", []fizz.OperationOption{
		fizz.Summary("Run a scrape and wait for its result"),
		fizz.Description("Logs into the portal, runs the saved search and returns the merged" +
			" listings of every exported result page.\n" +
			"A scrape can take minutes, prefer the [runs API](#tag/Runs) for anything interactive."),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
		fizz.Response("500", "Scrape failed", httpError{}, nil, nil),
	}, tonic.Handler(server.scrape, http.StatusOK))

	runsGroup := server.fizz.Group(
		"/runs",
		"Runs",
		"Start scrapes in the background and retrieve their stored results.",
	)
	runsGroup.Use(server.authMiddleware)
	runsGroup.POST("", []fizz.OperationOption{
		fizz.Summary("Start a background scrape run"),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
	}, tonic.Handler(server.startRun, http.StatusAccepted))
	runsGroup.GET("", []fizz.OperationOption{
		fizz.Summary("List stored runs"),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
	}, tonic.Handler(server.listRuns, http.StatusOK))
	runsGroup.GET("/:run_id", []fizz.OperationOption{
		fizz.Summary("Retrieve a run, including its listings"),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
		fizz.Response("404", "Run not found", httpError{}, nil, nil),
	}, tonic.Handler(server.getRun, http.StatusOK))
	runsGroup.DELETE("/:run_id", []fizz.OperationOption{
		fizz.Summary("Delete a stored run"),
		fizz.Response("401", "Invalid API secret or token", httpError{}, nil, nil),
		fizz.Response("404", "Run not found", httpError{}, nil, nil),
	}, tonic.Handler(server.deleteRun, http.StatusOK))

	ginEngine.NoRoute(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusNotFound, fmt.Errorf("not found"))
	})

	ginEngine.NoMethod(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	return server, nil
}

type response struct {
	Message string `json:"message" description:"Human-readable response description"`
}

type infoResponse struct {
	response
	Version     string `json:"version" description:"Listing Scraper version"`
	VersionHash string `json:"version_hash"`
}

func (server *Server) getInfo(*gin.Context) (infoResponse, error) {
	return infoResponse{
		response: response{
			Message: "This is the Listing Scraper",
		},
		Version:     version.Version,
		VersionHash: version.Hash,
	}, nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (server *Server) getHealth(*gin.Context) (healthResponse, error) {
	return healthResponse{
		Status:  "ok",
		Service: "listing-scraper",
		Version: version.Version,
	}, nil
}

type tokenRequest struct {
	Subject string `json:"subject,omitempty" description:"Optional name recorded in the token"`
}

type tokenResponse struct {
	Token string `json:"token" description:"Bearer token accepted wherever the API secret is"`
}

func (server *Server) issueToken(_ *gin.Context, request *tokenRequest) (*tokenResponse, error) {
	subject := request.Subject
	if subject == "" {
		subject = "api-client"
	}
	tokenStr, err := MakeAndSerializeToken(subject, server.secret)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}
	return &tokenResponse{Token: tokenStr}, nil
}

type testLoginResponse struct {
	response
	Success bool `json:"success"`
}

func (server *Server) testLogin(c *gin.Context, request *api.LoginRequest) (*testLoginResponse, error) {
	log.WithField("username", request.Username).Info("testing portal login")

	if err := server.engine.TestLogin(c, *request); err != nil {
		return nil, wrapError(http.StatusBadRequest, errors.Annotate(err, "login failed"))
	}
	return &testLoginResponse{
		response: response{Message: "Login successful"},
		Success:  true,
	}, nil
}

// applyProfile resolves the request's named profile and fills the remaining
// defaults.
func (server *Server) applyProfile(request *api.ScrapeRequest) error {
	if request.Profile == "" {
		return request.ApplyDefaults()
	}
	profile, ok := server.profiles[request.Profile]
	if !ok {
		return wrapError(
			http.StatusBadRequest,
			errors.Errorf("unknown scrape profile [%s]", request.Profile),
		)
	}
	return request.ApplyDefaults(profile)
}

func (server *Server) scrape(c *gin.Context, request *api.ScrapeRequest) (*api.ScrapeResult, error) {
	if err := server.applyProfile(request); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"username":     request.Username,
		"saved_search": request.SavedSearchName,
	}).Info("starting a synchronous scrape")

	start := time.Now()
	result, err := server.engine.Scrape(c, *request)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(api.RunFailed)).Inc()
		return nil, wrapError(http.StatusInternalServerError, err)
	}
	metrics.RunsTotal.WithLabelValues(string(api.RunSucceeded)).Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	return result, nil
}

type startRunResponse struct {
	response
	*api.RunSummary
}

func (server *Server) startRun(_ *gin.Context, request *api.ScrapeRequest) (*startRunResponse, error) {
	if err := server.applyProfile(request); err != nil {
		return nil, err
	}

	summary, err := server.runManager.StartRun(*request)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}
	return &startRunResponse{
		response:   response{Message: fmt.Sprintf("Run [%s] started", summary.RunID)},
		RunSummary: summary,
	}, nil
}

type listRunsRequest struct {
	From  int `query:"from" description:"Run index to start from, as returned in next_from"`
	Count int `query:"count" default:"20" description:"Maximum number of runs to return"`
}

type listRunsResponse struct {
	Runs     []*api.RunSummary `json:"runs"`
	NextFrom int               `json:"next_from" description:"Pass as from to retrieve the next page"`
}

func (server *Server) listRuns(c *gin.Context, request *listRunsRequest) (*listRunsResponse, error) {
	summaries, nextFrom, err := server.runManager.ListRuns(c, request.From, request.Count)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}
	return &listRunsResponse{Runs: summaries, NextFrom: nextFrom}, nil
}

type runRequest struct {
	RunID string `path:"run_id" description:"The run identifier"`
}

func (server *Server) getRun(c *gin.Context, request *runRequest) (*api.RunInfo, error) {
	info, err := server.runManager.GetRun(c, request.RunID)
	if err != nil {
		return nil, wrapRunError(err)
	}
	return info, nil
}

func (server *Server) deleteRun(c *gin.Context, request *runRequest) (*response, error) {
	if err := server.runManager.DeleteRun(c, request.RunID); err != nil {
		return nil, wrapRunError(err)
	}
	return &response{Message: fmt.Sprintf("Run [%s] deleted", request.RunID)}, nil
}

func wrapRunError(err error) error {
	var unknownRunErr *runsbackend.UnknownRunError
	if errors.As(err, &unknownRunErr) {
		return wrapError(http.StatusNotFound, err)
	}
	return wrapError(http.StatusInternalServerError, err)
}
