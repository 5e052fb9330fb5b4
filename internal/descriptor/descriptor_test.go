package descriptor

import (
	"bytes"
	"encoding/xml"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/build-sandbox/internal/workspace"
)

// parsedPOM reads back the fields a build tool cares about. Tags carry no
// namespace so they match the POM default namespace.
type parsedPOM struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Packaging  string `xml:"packaging"`
	Properties struct {
		Source   string `xml:"maven.compiler.source"`
		Target   string `xml:"maven.compiler.target"`
		Encoding string `xml:"project.build.sourceEncoding"`
	} `xml:"properties"`
	Plugins []struct {
		ArtifactID string `xml:"artifactId"`
		MainClass  string `xml:"configuration>archive>manifest>mainClass"`
	} `xml:"build>plugins>plugin"`
}

func TestRenderPOM_WellFormedAndVerbatim(t *testing.T) {
	data, err := RenderPOM(POMParams{
		ArtifactID: "TestComponent",
		Version:    "1.0.0",
		MainClass:  "com.sandbox.components.TestComponent",
	})
	require.NoError(t, err)

	var got parsedPOM
	require.NoError(t, xml.Unmarshal(data, &got), "pom.xml must be well-formed:\n%s", data)

	assert.Equal(t, "TestComponent", got.ArtifactID)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, DefaultGroupID, got.GroupID)
	assert.Equal(t, "jar", got.Packaging)
	assert.Equal(t, "8", got.Properties.Source)
	assert.Equal(t, "8", got.Properties.Target)
	assert.Equal(t, "UTF-8", got.Properties.Encoding)

	require.Len(t, got.Plugins, 2)
	assert.Equal(t, "maven-compiler-plugin", got.Plugins[0].ArtifactID)
	assert.Equal(t, "maven-jar-plugin", got.Plugins[1].ArtifactID)
	assert.Equal(t, "com.sandbox.components.TestComponent", got.Plugins[1].MainClass)

	assert.True(t, strings.HasPrefix(string(data), `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, string(data), `xmlns="http://maven.apache.org/POM/4.0.0"`)
}

func TestRenderPOM_CustomRelease(t *testing.T) {
	data, err := RenderPOM(POMParams{ArtifactID: "a", Version: "2.0.0-SNAPSHOT", JavaRelease: "17", GroupID: "org.example"})
	require.NoError(t, err)

	var got parsedPOM
	require.NoError(t, xml.Unmarshal(data, &got))
	assert.Equal(t, "17", got.Properties.Source)
	assert.Equal(t, "org.example", got.GroupID)
	assert.Equal(t, "2.0.0-SNAPSHOT", got.Version)
}

func TestRenderPOM_RequiresIdentity(t *testing.T) {
	_, err := RenderPOM(POMParams{ArtifactID: "a"})
	assert.Error(t, err)
	_, err = RenderPOM(POMParams{Version: "1"})
	assert.Error(t, err)
}

type parsedJob struct {
	Description     string `xml:"description"`
	ConcurrentBuild bool   `xml:"concurrentBuild"`
	SCM             struct {
		Class string `xml:"class,attr"`
	} `xml:"scm"`
	Commands []string `xml:"builders>hudson.tasks.Shell>command"`
}

// decodeJob checks the XML 1.1 prolog and decodes the rest. encoding/xml
// only accepts version 1.0 declarations, so the prolog is stripped first.
func decodeJob(t *testing.T, data []byte) parsedJob {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte(jenkinsProlog)), "job xml must start with the 1.1 prolog:\n%s", data)

	var got parsedJob
	require.NoError(t, xml.Unmarshal(bytes.TrimPrefix(data, []byte(jenkinsProlog)), &got), "job xml must be well-formed:\n%s", data)
	return got
}

func TestRenderJenkinsJob(t *testing.T) {
	data, err := RenderJenkinsJob(JenkinsJobParams{
		JobName:      "TestComponent-Job",
		ArtifactPath: "/tmp/java-sandbox-test/target/TestComponent-1.0.0.jar",
	})
	require.NoError(t, err)

	got := decodeJob(t, data)

	assert.Equal(t, "Generated job for TestComponent-Job", got.Description)
	assert.False(t, got.ConcurrentBuild)
	assert.Equal(t, "hudson.scm.NullSCM", got.SCM.Class)
	assert.Equal(t, []string{"java -jar /tmp/java-sandbox-test/target/TestComponent-1.0.0.jar"}, got.Commands)
	assert.True(t, strings.HasPrefix(string(data), `<?xml version='1.1' encoding='UTF-8'?>`))
}

func TestRenderJenkinsJob_EscapesPaths(t *testing.T) {
	data, err := RenderJenkinsJob(JenkinsJobParams{JobName: "a&b", ArtifactPath: "/ws/<odd>.jar"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<odd>")

	got := decodeJob(t, data)
	assert.Equal(t, []string{"java -jar /ws/<odd>.jar"}, got.Commands)
}

func TestWriteJenkinsJob(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	path, err := WriteJenkinsJob(ws, JenkinsJobParams{
		JobName:      JobName("TestComponent"),
		ArtifactPath: ws.Path("target", "TestComponent-1.0.0.jar"),
	})
	require.NoError(t, err)
	assert.Equal(t, ws.Path(JenkinsJobFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got := decodeJob(t, data)
	assert.Equal(t, "Generated job for TestComponent-Job", got.Description)
}
