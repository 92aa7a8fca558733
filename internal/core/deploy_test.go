package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maticvigil/vigil-go/internal/abi"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestReadSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Main.sol"), `pragma solidity ^0.8.0;
import "./Ownable.sol";
import {Math} from "./lib/Math.sol";
import * as Util from './Util.sol';
contract Main {}
`)
	writeFile(t, filepath.Join(dir, "Ownable.sol"), `contract Ownable {}`)
	writeFile(t, filepath.Join(dir, "Util.sol"), `import "./Ownable.sol" as O;`)
	writeFile(t, filepath.Join(dir, "lib", "Math.sol"), `import "./SafeCast.sol";`)
	writeFile(t, filepath.Join(dir, "lib", "SafeCast.sol"), `library SafeCast {}`)

	sources, mainKey, err := ReadSources(filepath.Join(dir, "Main.sol"))
	require.NoError(t, err)
	assert.Equal(t, "ev-go-sdk/Main.sol", mainKey)
	assert.Len(t, sources, 5)
	for _, key := range []string{
		"ev-go-sdk/Main.sol",
		"ev-go-sdk/Ownable.sol",
		"ev-go-sdk/Util.sol",
		"ev-go-sdk/lib/Math.sol",
		"ev-go-sdk/lib/SafeCast.sol",
	} {
		assert.Contains(t, sources, key)
	}
	assert.Equal(t, "contract Ownable {}", sources["ev-go-sdk/Ownable.sol"].Content)
}

func TestReadSources_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Package.sol"), `import "@openzeppelin/contracts/Ownable.sol";`)
	writeFile(t, filepath.Join(dir, "Parent.sol"), `import "./../Outside.sol";`)
	writeFile(t, filepath.Join(dir, "Missing.sol"), `import "./Nope.sol";`)

	_, _, err := ReadSources(filepath.Join(dir, "Package.sol"))
	require.ErrorIs(t, err, ErrUnsupportedImport)

	_, _, err = ReadSources(filepath.Join(dir, "Parent.sol"))
	require.ErrorIs(t, err, ErrUnsupportedImport)

	_, _, err = ReadSources(filepath.Join(dir, "Missing.sol"))
	require.ErrorContains(t, err, "error reading contract source")

	_, _, err = ReadSources(filepath.Join(dir, "Absent.sol"))
	require.Error(t, err)
}

const demoABI = `[
	{"type":"constructor","inputs":[{"name":"initNote","type":"string"},{"name":"initValue","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"note","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"}
]`

func newDeployGateway(t *testing.T, deploys *atomic.Int32) (*httptest.Server, string) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			_, _ = io.WriteString(w, fmt.Sprintf(loginResponse, srv.URL+"/v0.1"))
		case "/api/abi":
			body := decodeBody(t, r)
			assertSigned(t, body, DeployMessage)
			assert.Equal(t, "ev-go-sdk/Demo.sol", body["sourceFile"])
			assert.Equal(t, "Demo", body["name"])
			_, _ = io.WriteString(w, `{"success":true,"data":`+demoABI+`}`)
		case "/api/deploy":
			deploys.Add(1)
			body := decodeBody(t, r)
			assertSigned(t, body, DeployMessage)
			assert.Equal(t, []any{"hello", "5"}, body["inputs"])
			sources, _ := body["sources"].(map[string]any)
			assert.Contains(t, sources, "ev-go-sdk/Demo.sol")
			_, _ = io.WriteString(w, `{"success":true,"data":{"contract":"0xabc","txhash":"0xdef"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	writeSettings(t, dir, srv.URL+"/api", testKey)
	writeFile(t, filepath.Join(dir, "Demo.sol"), `contract Demo {}`)
	return srv, dir
}

func TestClient_Deploy(t *testing.T) {
	t.Parallel()

	var deploys atomic.Int32
	_, dir := newDeployGateway(t, &deploys)
	c, err := New(context.Background(), testOptions(t, dir))
	require.NoError(t, err)

	res, err := c.Deploy(context.Background(), filepath.Join(dir, "Demo.sol"), "Demo", map[string]any{
		"initValue": "5",
		"initNote":  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.Contract)
	assert.Equal(t, "0xdef", res.TxHash)
	assert.JSONEq(t, demoABI, string(res.ABI))
	assert.Equal(t, int32(1), deploys.Load())
}

func TestClient_DeployRejectsBadInputs(t *testing.T) {
	t.Parallel()

	var deploys atomic.Int32
	_, dir := newDeployGateway(t, &deploys)
	c, err := New(context.Background(), testOptions(t, dir))
	require.NoError(t, err)
	ctx := context.Background()
	file := filepath.Join(dir, "Demo.sol")

	_, err = c.Deploy(ctx, file, "Demo", map[string]any{"initNote": "hello", "initValue": "lots"})
	var convErr *abi.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, []string{"initValue"}, convErr.Errors.Params())

	_, err = c.Deploy(ctx, file, "Demo", map[string]any{"initNote": "hello"})
	require.ErrorContains(t, err, "constructor expects 2 inputs, got 1")

	assert.Equal(t, int32(0), deploys.Load())
}

func TestReadSources_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, "contracts", "Demo.sol"), `contract Demo {}`)

	sources, mainKey, err := ReadSources("~/contracts/Demo.sol")
	require.NoError(t, err)
	assert.Equal(t, "contract Demo {}", sources[mainKey].Content)
}
