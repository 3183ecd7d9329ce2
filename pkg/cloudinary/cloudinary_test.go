package cloudinary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildImageURL(t *testing.T) {
	require.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_1280/results/user_1_2",
		BuildImageURL("demo", "results", "user_1_2", 0))
	require.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_300/x",
		BuildImageURL("demo", "", "x", 300))
}

func TestNopArchive(t *testing.T) {
	url, err := Nop{}.Archive(context.Background(), []byte("img"), "id")
	require.NoError(t, err)
	require.Empty(t, url)
}
