package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maticvigil/vigil-go/internal/abi"
)

// sourcePrefix namespaces uploaded sources for the compiler.
const sourcePrefix = "ev-go-sdk/"

var ErrUnsupportedImport = errors.New("you can only import files from within the same directory as of now")

// importPattern matches the path of every Solidity import form:
// import "p"; import "p" as X; import {A} from "p"; import * as X from "p";
var importPattern = regexp.MustCompile(`(?m)^\s*import\s+(?:[^;"']*?\bfrom\s+)?["']([^"']+)["'][^;]*;`)

// Source is one file in a compile request.
type Source struct {
	Content string `json:"content"`
}

// DeployResult is the gateway's answer to a deployment.
type DeployResult struct {
	Contract string `json:"contract"`
	TxHash   string `json:"txhash"`

	// ABI is the compiled interface description of the contract.
	ABI json.RawMessage `json:"-"`
}

// ReadSources reads file and, transitively, every file it imports. Imports
// must be relative to the importing file and start with "./". The returned
// key names the main file within sources.
func ReadSources(file string) (map[string]Source, string, error) {
	if strings.HasPrefix(file, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", fmt.Errorf("error resolving home directory: %w", err)
		}
		file = filepath.Join(home, file[1:])
	}

	root := filepath.Dir(file)
	mainKey := sourcePrefix + filepath.Base(file)
	sources := make(map[string]Source)

	queue := []string{mainKey}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, seen := sources[key]; seen {
			continue
		}

		rel := strings.TrimPrefix(key, sourcePrefix)
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, "", fmt.Errorf("error reading contract source: %w", err)
		}
		sources[key] = Source{Content: string(data)}

		for _, m := range importPattern.FindAllStringSubmatch(string(data), -1) {
			loc := m[1]
			imported := path.Join(path.Dir(key), strings.TrimPrefix(loc, "./"))
			if !strings.HasPrefix(loc, "./") || !strings.HasPrefix(imported, sourcePrefix) {
				return nil, "", fmt.Errorf("%w: %s imports %s", ErrUnsupportedImport, rel, loc)
			}
			queue = append(queue, imported)
		}
	}
	return sources, mainKey, nil
}

type compileResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Compile has the gateway compile sources and returns the interface
// description of contract name.
func (c *Client) Compile(ctx context.Context, sources map[string]Source, sourceFile, name string) (json.RawMessage, error) {
	msg, sig, err := c.sign(DeployMessage)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"msg":        msg,
		"sig":        sig,
		"name":       name,
		"sources":    sources,
		"sourceFile": sourceFile,
	}
	var resp compileResponse
	if err := c.rest.Post(ctx, c.internalURL("/abi"), params, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("error compiling %s: %s", sourceFile, resp.Error)
	}
	return resp.Data, nil
}

type deployResponse struct {
	Success bool         `json:"success"`
	Data    DeployResult `json:"data"`
	Error   string       `json:"error"`
}

// Deploy compiles file and deploys contract name from it. inputs are the
// named constructor arguments; they are validated against the compiled
// constructor and sent in declaration order.
func (c *Client) Deploy(ctx context.Context, file, name string, inputs map[string]any) (*DeployResult, error) {
	c.lggr.Debugw("Got unordered constructor inputs", "inputs", inputs)

	sources, sourceFile, err := ReadSources(file)
	if err != nil {
		return nil, err
	}

	abiJSON, err := c.Compile(ctx, sources, sourceFile, name)
	if err != nil {
		return nil, err
	}
	entries, err := abi.ParseEntries(abiJSON)
	if err != nil {
		return nil, err
	}
	reg, err := abi.New(entries)
	if err != nil {
		return nil, err
	}
	ordered, errs, err := reg.OrderConstructorArgs(inputs)
	if err != nil {
		return nil, err
	}
	if err := errs.Err("constructor"); err != nil {
		return nil, err
	}
	c.lggr.Debugw("Ordered constructor inputs", "inputs", ordered)

	msg, sig, err := c.sign(DeployMessage)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"msg":        msg,
		"sig":        sig,
		"name":       name,
		"inputs":     ordered,
		"sources":    sources,
		"sourceFile": sourceFile,
	}
	var resp deployResponse
	if err := c.rest.Post(ctx, c.internalURL("/deploy"), params, nil, &resp); err != nil {
		return nil, err
	}
	c.lggr.Debugw("MaticVigil deploy response", "success", resp.Success, "contract", resp.Data.Contract, "txhash", resp.Data.TxHash)
	if !resp.Success {
		return nil, fmt.Errorf("error deploying %s: %s", name, resp.Error)
	}

	result := resp.Data
	result.ABI = abiJSON
	return &result, nil
}
