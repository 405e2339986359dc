package flow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowd/pkg/flow"
)

func TestProjectJSONRoundTrip(t *testing.T) {
	path := "../vendor/pkg"
	project := flow.Project{
		Name:    "demo",
		Version: "0.1.0",
		Packages: []flow.PackageRef{
			{Name: "flowrs_std", Version: "0.2.0"},
			{Name: "local_pkg", Version: "0.0.0", Path: &path},
		},
		Flow: &flow.Graph{
			Nodes: map[string]*flow.Node{
				"timer_node": {
					NodeType:       "flowrs_std::nodes::timer::SelectedTimer",
					TypeParameters: map[string]string{"T": "i32", "U": "i32"},
					Constructor:    "new",
				},
			},
			Connections: []flow.Connection{
				{FromNode: "timer_node", FromOutput: "out", ToNode: "debug_node", ToInput: "in"},
			},
			Data: json.RawMessage(`{"timer_node":{"value":5}}`),
		},
	}

	data, err := json.Marshal(&project)
	require.NoError(t, err)

	var decoded flow.Project
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, project.Name, decoded.Name)
	require.Equal(t, project.Packages[1].Name, decoded.Packages[1].Name)
	require.Equal(t, *project.Packages[1].Path, *decoded.Packages[1].Path)
	require.Equal(t, project.Flow.Nodes["timer_node"].TypeParameters["U"], decoded.Flow.Nodes["timer_node"].TypeParameters["U"])
	require.JSONEq(t, string(project.Flow.Data), string(decoded.Flow.Data))
}

func TestTypeRefNestedGenericRoundTrip(t *testing.T) {
	ref := flow.TypeRef{
		Kind: flow.TypeRefConcrete,
		Name: "SelectedTimer",
		TypeParameters: []flow.TypeRef{
			{Kind: flow.TypeRefGeneric, Name: "U"},
		},
	}
	data, err := json.Marshal(ref)
	require.NoError(t, err)

	var decoded flow.TypeRef
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, ref, decoded)
	require.True(t, decoded.TypeParameters[0].IsGeneric())
}

func TestGraphCloneIsIndependent(t *testing.T) {
	original := &flow.Graph{
		Nodes: map[string]*flow.Node{
			"n1": {NodeType: "i32", TypeParameters: map[string]string{"T": "i32"}, Constructor: "default"},
		},
		Connections: []flow.Connection{{FromNode: "n1", FromOutput: "out", ToNode: "n1", ToInput: "in"}},
		Data:        json.RawMessage(`{}`),
	}

	clone := original.Clone()
	clone.Nodes["n1"].TypeParameters["T"] = "f64"
	clone.Connections[0].ToInput = "other"

	require.Equal(t, "i32", original.Nodes["n1"].TypeParameters["T"])
	require.Equal(t, "in", original.Connections[0].ToInput)
}
