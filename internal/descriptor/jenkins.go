package descriptor

import (
	"encoding/xml"
	"fmt"

	"github.com/sakif/build-sandbox/internal/workspace"
)

// JenkinsJobFile is the workspace-relative location of the job descriptor.
const JenkinsJobFile = "jenkins-job.xml"

// JobName is the job name used for a unit: "<Name>-Job".
func JobName(unitName string) string {
	return unitName + "-Job"
}

// JenkinsJobParams parameterize the job descriptor.
type JenkinsJobParams struct {
	JobName      string
	ArtifactPath string
	// Launcher defaults to "java".
	Launcher string
}

// jenkinsProject is a freestyle job: no SCM, no concurrent builds, one shell
// step that launches the packaged artifact.
type jenkinsProject struct {
	XMLName                          xml.Name       `xml:"project"`
	Description                      string         `xml:"description"`
	KeepDependencies                 bool           `xml:"keepDependencies"`
	Properties                       struct{}       `xml:"properties"`
	SCM                              jenkinsSCM     `xml:"scm"`
	CanRoam                          bool           `xml:"canRoam"`
	Disabled                         bool           `xml:"disabled"`
	BlockBuildWhenDownstreamBuilding bool           `xml:"blockBuildWhenDownstreamBuilding"`
	BlockBuildWhenUpstreamBuilding   bool           `xml:"blockBuildWhenUpstreamBuilding"`
	Triggers                         struct{}       `xml:"triggers"`
	ConcurrentBuild                  bool           `xml:"concurrentBuild"`
	Builders                         []jenkinsShell `xml:"builders>hudson.tasks.Shell"`
	Publishers                       struct{}       `xml:"publishers"`
	BuildWrappers                    struct{}       `xml:"buildWrappers"`
}

type jenkinsSCM struct {
	Class string `xml:"class,attr"`
}

type jenkinsShell struct {
	Command string `xml:"command"`
}

// RenderJenkinsJob returns the jenkins-job.xml document for p.
func RenderJenkinsJob(p JenkinsJobParams) ([]byte, error) {
	if p.JobName == "" || p.ArtifactPath == "" {
		return nil, fmt.Errorf("descriptor: job name and artifact path are required")
	}
	launcher := p.Launcher
	if launcher == "" {
		launcher = "java"
	}

	doc := jenkinsProject{
		Description: "Generated job for " + p.JobName,
		SCM:         jenkinsSCM{Class: "hudson.scm.NullSCM"},
		CanRoam:     true,
		Builders: []jenkinsShell{
			{Command: launcher + " -jar " + p.ArtifactPath},
		},
	}

	return marshal(jenkinsProlog, doc)
}

// jenkinsProlog is the declaration Jenkins itself writes into config.xml.
const jenkinsProlog = `<?xml version='1.1' encoding='UTF-8'?>`

// WriteJenkinsJob renders the job descriptor into the workspace root and
// returns its path.
func WriteJenkinsJob(ws *workspace.Workspace, p JenkinsJobParams) (string, error) {
	data, err := RenderJenkinsJob(p)
	if err != nil {
		return "", err
	}
	return ws.WriteFile(JenkinsJobFile, data)
}
