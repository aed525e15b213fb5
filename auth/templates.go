// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/voxlink/warden/pkg/errors"
)

// ErrRenderTemplate indicates an ACL template failed to parse or render
// for a reason other than a missing context variable.
var ErrRenderTemplate = errors.New("failed to render acl template")

// ContextFunc produces the identity context an ACL template renders
// against. It is invoked at most once per expansion, and only when a
// template actually references a context variable.
type ContextFunc func(ctx context.Context) (map[string]interface{}, error)

// Renderer expands an ordered list of ACL templates into ACL strings.
// Each template is first rendered against an empty context with strict
// missing-variable handling; templates made of static ACLs never pay
// for a context fetch. On the first missing variable the context is
// fetched and the template retried. A template still missing a variable
// after the fetch contributes no ACLs.
type Renderer struct {
	templates []string
	fetch     ContextFunc
}

// NewRenderer returns a Renderer over the given templates and deferred
// context provider.
func NewRenderer(templates []string, fetch ContextFunc) *Renderer {
	return &Renderer{
		templates: templates,
		fetch:     fetch,
	}
}

// Render expands all templates and returns the resulting ACLs, one per
// non-empty rendered line, in template order.
func (r *Renderer) Render(ctx context.Context) ([]string, error) {
	data := map[string]interface{}{}
	fetched := false

	acls := []string{}
	for _, tmpl := range r.templates {
		out, err := renderOne(tmpl, data)
		if err != nil {
			if !isMissingVariable(err) {
				return nil, errors.Wrap(ErrRenderTemplate, err)
			}
			if !fetched {
				data, err = r.fetch(ctx)
				if err != nil {
					return nil, err
				}
				fetched = true
				out, err = renderOne(tmpl, data)
			}
			if err != nil {
				if !isMissingVariable(err) {
					return nil, errors.Wrap(ErrRenderTemplate, err)
				}
				continue
			}
		}

		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				acls = append(acls, line)
			}
		}
	}

	return acls, nil
}

func renderOne(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("acl").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// isMissingVariable recognizes the strict-mode execution error raised
// when a template references a key absent from the context map.
func isMissingVariable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "map has no entry for key")
}
