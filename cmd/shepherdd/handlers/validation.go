package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudpasture/shepherd/pkg/domain"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	"github.com/cloudpasture/shepherd/pkg/domain/schema"
	"github.com/cloudpasture/shepherd/pkg/domain/validation"
)

// SchemaGetter is the part of the schema cache handlers need.
type SchemaGetter interface {
	Get(ctx context.Context, version string) (schema.Schema, schema.Source, error)
	Latest() (schema.Schema, schema.Source)
}

// pick the schema fitting the configuration's target environment.
//
// The schema follows the platform version of the clusters able to take the
// record. With no known cluster for the environment the newest schema in
// the cache applies; the decision endpoint re-validates against the chosen
// cluster anyway.
func schemaFor(
	ctx context.Context,
	clusters clusterdb.Interface,
	schemas SchemaGetter,
	environment domain.Environment,
) (schema.Schema, error) {
	snapshots, err := clusters.List(ctx)
	if err != nil {
		return schema.Schema{}, err
	}

	version := ""
	for _, snapshot := range snapshots {
		if !snapshot.Healthy || snapshot.Environment != environment {
			continue
		}
		if version == "" || schema.VersionLess(version, snapshot.PlatformVersion) {
			version = snapshot.PlatformVersion
		}
	}
	if version == "" {
		s, _ := schemas.Latest()
		return s, nil
	}

	s, _, err := schemas.Get(ctx, version)
	return s, err
}

// read the size name out of a configuration.
func sizeNameOf(config []byte) string {
	var doc struct {
		Size string `json:"size"`
	}
	if err := json.Unmarshal(config, &doc); err != nil {
		return ""
	}
	return doc.Size
}

func violationAdvice(violations []validation.Violation) string {
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return strings.Join(lines, "; ")
}
