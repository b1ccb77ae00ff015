package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndInit(t *testing.T) {
	files, err := Generate(GenParams{NumNodes: 4, NumFaults: 1, DeltaMS: 25, BasePort: 7300, PayloadSize: 64})
	require.NoError(t, err)
	require.Len(t, files, 4)

	for i, f := range files {
		node, err := f.Init()
		require.NoError(t, err, "node %d", i)
		require.NoError(t, node.Validate())
		require.EqualValues(t, i, node.ID)
		require.Equal(t, 4, node.NumNodes)
		require.Equal(t, 1, node.NumFaults)
		require.Len(t, node.PKMap, 4)
		require.NotNil(t, node.PvssCtx)
		// Every replica starts with one bootstrap aggregate per dealer.
		require.Len(t, node.RandBeaconQueue, 4)
		for r, q := range node.RandBeaconQueue {
			require.Len(t, q, 1, "dealer %d", r)
			require.Len(t, q[0].Encs, 4)
		}
	}

	// The bootstrap queues are identical across replicas.
	n0, err := files[0].Init()
	require.NoError(t, err)
	n1, err := files[1].Init()
	require.NoError(t, err)
	for r := range n0.RandBeaconQueue {
		a := n0.RandBeaconQueue[r][0]
		b := n1.RandBeaconQueue[r][0]
		require.True(t, a.Comms[0].EqualG(b.Comms[0]), "dealer %d queues differ", r)
	}
}

func TestGenerateRejectsBadFaults(t *testing.T) {
	_, err := Generate(GenParams{NumNodes: 4, NumFaults: 2, DeltaMS: 10, BasePort: 7400})
	require.ErrorIs(t, err, ErrIncorrectFaults)
}

func TestConfigRoundTripAllFormats(t *testing.T) {
	files, err := Generate(GenParams{NumNodes: 3, NumFaults: 1, DeltaMS: 10, BasePort: 7500})
	require.NoError(t, err)
	orig := files[2]

	dir := t.TempDir()
	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML, FormatBinary} {
		path := filepath.Join(dir, "nodes-2."+format.Ext())
		require.NoError(t, Save(orig, path), format)

		node, err := Load(path)
		require.NoError(t, err, format)
		require.EqualValues(t, 2, node.ID, format)
		require.Equal(t, 3, node.NumNodes, format)
		require.Len(t, node.RandBeaconQueue, 3, format)
		require.Equal(t, orig.NetMap[1], node.NetMap[1], format)
	}
}

func TestInitRejectsCorruptFile(t *testing.T) {
	files, err := Generate(GenParams{NumNodes: 3, NumFaults: 1, DeltaMS: 10, BasePort: 7600})
	require.NoError(t, err)

	bad := *files[0]
	bad.NumFaults = 1
	bad.NumNodes = 2
	_, err = bad.Init()
	require.ErrorIs(t, err, ErrIncorrectFaults)

	bad = *files[0]
	bad.PubKeys = bad.PubKeys[:2]
	_, err = bad.Init()
	require.ErrorIs(t, err, ErrInvalidMapLen)

	bad = *files[0]
	bad.SecretKey = "zz-not-hex"
	_, err = bad.Init()
	require.Error(t, err)

	bad = *files[0]
	pk := []string{bad.PVSSPubKeys[0], bad.PVSSPubKeys[1], "deadbeef"}
	bad.PVSSPubKeys = pk
	_, err = bad.Init()
	require.ErrorIs(t, err, ErrInvalidPkSize)
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"bin", "json", "toml", "yaml", "JSON"} {
		_, err := ParseFormat(ok)
		require.NoError(t, err, ok)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
}
