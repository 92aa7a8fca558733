package core

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/maticvigil/vigil-go/internal/contract"
)

const formContentType = "application/x-www-form-urlencoded"

type openAPIDoc struct {
	OpenAPI string                                 `json:"openapi"`
	Paths   map[string]map[string]openAPIOperation `json:"paths"`
}

type openAPIOperation struct {
	Parameters []struct {
		Name string `json:"name"`
	} `json:"parameters"`
	RequestBody struct {
		Content map[string]struct {
			Schema struct {
				Properties map[string]json.RawMessage `json:"properties"`
			} `json:"schema"`
		} `json:"content"`
	} `json:"requestBody"`
}

// GenerateContractSDK builds a proxy for the contract at address from the
// OpenAPI description the gateway publishes for it.
func (c *Client) GenerateContractSDK(ctx context.Context, address, appName string, opts ...contract.Option) (*contract.Contract, error) {
	acct := c.Account()
	if acct == nil {
		return nil, ErrNoAccount
	}

	prefix := strings.TrimRight(acct.APIPrefix, "/")
	specURL := fmt.Sprintf("%s/swagger/%s/?key=%s", prefix, address, url.QueryEscape(acct.ReadKey))
	var doc openAPIDoc
	if err := c.rest.Get(ctx, specURL, &doc); err != nil {
		return nil, err
	}

	methods := buildMethods(&doc, fmt.Sprintf("%s/contract/%s", prefix, address))
	c.lggr.Infow("Generated contract SDK", "app", appName, "address", address, "methods", len(methods))

	return contract.New(contract.Config{
		Address:          address,
		Methods:          methods,
		InternalEndpoint: c.settings.InternalAPIEndpoint,
		WriteKey:         acct.Key,
		Signer:           c.signer,
		Rest:             c.rest,
		Logger:           c.lggr,
	}, opts...)
}

// buildMethods turns every OpenAPI path into a dispatch table entry. The
// method name is the first path segment, so /getPost/{id} becomes getPost.
func buildMethods(doc *openAPIDoc, base string) map[string]contract.Method {
	methods := make(map[string]contract.Method, len(doc.Paths))
	for endpoint, item := range doc.Paths {
		name, _, _ := strings.Cut(strings.TrimPrefix(endpoint, "/"), "/")
		if name == "" {
			continue
		}
		m := contract.Method{Name: name, URL: base + "/" + name}
		if op, ok := item[contract.VerbGet]; ok {
			m.Verb = contract.VerbGet
			for _, p := range op.Parameters {
				m.Params = append(m.Params, p.Name)
			}
		} else if op, ok := item[contract.VerbPost]; ok {
			m.Verb = contract.VerbPost
			if form, ok := op.RequestBody.Content[formContentType]; ok {
				m.Params = slices.Sorted(maps.Keys(form.Schema.Properties))
			}
		} else {
			continue
		}
		methods[name] = m
	}
	return methods
}
