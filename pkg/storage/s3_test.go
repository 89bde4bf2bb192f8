package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"
)

func TestExportKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	require.Equal(t, "exports/abc/1700000000.txt", ExportKey("abc", at))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "us-east-1"}, nil)
	require.Error(t, err)
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{}
	require.Equal(t, 15*time.Minute, s.PresignExpire())
	s.cfg.PresignExpireMinutes = 5
	require.Equal(t, 5*time.Minute, s.PresignExpire())
}

func TestPutInput(t *testing.T) {
	in := putInput("debate-exports", Object{
		Key:          "exports/s1/1.txt",
		ContentType:  "text/plain; charset=utf-8",
		DownloadName: "debate-s1.txt",
		Metadata:     map[string]string{"session-id": "s1"},
	}, strings.NewReader("report"))
	require.Equal(t, "debate-exports", aws.ToString(in.Bucket))
	require.Equal(t, "exports/s1/1.txt", aws.ToString(in.Key))
	require.Equal(t, "text/plain; charset=utf-8", aws.ToString(in.ContentType))
	require.Equal(t, `attachment; filename=debate-s1.txt`, aws.ToString(in.ContentDisposition))
	require.Equal(t, "s1", in.Metadata["session-id"])

	bare := putInput("b", Object{Key: "k"}, strings.NewReader(""))
	require.Nil(t, bare.ContentType)
	require.Nil(t, bare.ContentDisposition)
}
