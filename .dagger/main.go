// Study CI
//
// Package main runs the study client's tests and builds in containers, the
// same way locally and in GitHub actions.
package main

import (
	"context"

	"dagger/study/internal/dagger"
)

// Study is the CI module for the study client.
type Study struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Study CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Study {
	return &Study{
		Source: source,
	}
}

// goContainer returns a Go container with module and build caches and the
// project source mounted. The client is pure Go, so CGO stays off.
func (s *Study) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the unit tests via "go test"
//
// +check
func (s *Study) Test(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package
//
// +check
func (s *Study) Vet(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
