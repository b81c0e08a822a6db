// Copyright 2026 ioloop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestTaggedHook(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger()).WithField("tag", "poller")
	entry.Message = "poller: watch detached"

	hook := new(TaggedHook)
	require.NoError(t, hook.Fire(entry))
	require.Equal(t, "[poller]: watch detached", entry.Message)
	require.NotContains(t, entry.Data, "tag")
}

func TestTaggedHookNoTag(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())
	entry.Message = "plain message"

	hook := new(TaggedHook)
	require.NoError(t, hook.Fire(entry))
	require.Equal(t, "plain message", entry.Message)
}

func TestNewLoggerWritesTag(t *testing.T) {
	prev := logrus.StandardLogger().Out
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(prev)

	NewLogger("dispatch").Info("loop started")
	require.Contains(t, buf.String(), "[dispatch]: loop started")
}
