package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureMail = `Return-Path: <andreas@rammhold.de>
From: Andreas Rammhold <andreas@rammhold.de>
To: patches@rammhold.de
Subject: [PATCH] Add a new file to the repository
Date: Tue, 15 Dec 2020 21:56:39 +0100
Message-Id: <20201215205639.31206-1-andreas@rammhold.de>
MIME-Version: 1.0
Content-Transfer-Encoding: 8bit

---
 new-file | 1 +
 1 file changed, 1 insertion(+)
 create mode 100644 new-file

diff --git a/new-file b/new-file
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/new-file
@@ -0,0 +1 @@
+hello world
--
2.29.2
`

func TestMessage(t *testing.T) {
	t.Run("exposes the message id", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(fixtureMail))
		require.NoError(t, err)

		assert.Equal(t, "<20201215205639.31206-1-andreas@rammhold.de>", msg.MessageID())
	})

	t.Run("slugifies the subject", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(fixtureMail))
		require.NoError(t, err)

		assert.Equal(t, "Add-a-new-file-to-the-repository", msg.Slug())
	})

	t.Run("keeps the raw bytes intact", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(fixtureMail))
		require.NoError(t, err)

		assert.Equal(t, fixtureMail, string(msg.Bytes()))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse(strings.NewReader("not a mail"))
		require.Error(t, err)
	})
}
