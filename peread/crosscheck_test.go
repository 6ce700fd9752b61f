package peread

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"goclrmeta/internal/testimage"
)

func TestCrossCheckAgrees(t *testing.T) {
	for _, img := range []*testimage.Image{testimage.New(), testimage.New64()} {
		h, err := ReadImageHeader(NewSource(img.Reader()))
		require.NoError(t, err)

		issues := CrossCheck(img.Reader(), h)
		joined := strings.Join(issues, "\n")
		require.NotContains(t, joined, "bitness")
		require.NotContains(t, joined, "CLR header RVA")
	}
}

func TestCrossCheckReportsDisagreement(t *testing.T) {
	img := testimage.New()
	h, err := ReadImageHeader(NewSource(img.Reader()))
	require.NoError(t, err)

	h.Optional.PE64 = true
	h.Optional.DataDirectories[DirCLRRuntimeHeader].RVA = 0x3000

	issues := CrossCheck(img.Reader(), h)
	joined := strings.Join(issues, "\n")
	require.Contains(t, joined, "bitness")
	require.Contains(t, joined, "CLR header RVA")
}
