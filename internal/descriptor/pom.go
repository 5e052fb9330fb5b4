// Package descriptor renders the two XML files the pipeline leaves in a
// workspace: the Maven build descriptor (pom.xml) and the Jenkins job
// descriptor (jenkins-job.xml).
//
// Both are fixed templates with a handful of parameters. They are modelled as
// encoding/xml structs rather than string concatenation so every parameter is
// escaped.
package descriptor

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const (
	// POMFile is the workspace-relative location of the build descriptor.
	POMFile = "pom.xml"

	DefaultGroupID      = "com.sandbox.components"
	DefaultJavaRelease  = "8"
	compilerPluginVer   = "3.8.1"
	jarPluginVer        = "3.2.0"
	mavenPluginsGroupID = "org.apache.maven.plugins"
)

// POMParams parameterize the build descriptor.
type POMParams struct {
	GroupID    string
	ArtifactID string
	Version    string
	// MainClass is the qualified name written into the jar manifest.
	MainClass string
	// JavaRelease feeds both maven.compiler.source and .target.
	JavaRelease string
}

type pomProject struct {
	XMLName        xml.Name      `xml:"project"`
	Xmlns          string        `xml:"xmlns,attr"`
	XmlnsXSI       string        `xml:"xmlns:xsi,attr"`
	SchemaLocation string        `xml:"xsi:schemaLocation,attr"`
	ModelVersion   string        `xml:"modelVersion"`
	GroupID        string        `xml:"groupId"`
	ArtifactID     string        `xml:"artifactId"`
	Version        string        `xml:"version"`
	Packaging      string        `xml:"packaging"`
	Properties     pomProperties `xml:"properties"`
	Build          pomBuild      `xml:"build"`
}

type pomProperties struct {
	Source   string `xml:"maven.compiler.source"`
	Target   string `xml:"maven.compiler.target"`
	Encoding string `xml:"project.build.sourceEncoding"`
}

type pomBuild struct {
	Plugins []pomPlugin `xml:"plugins>plugin"`
}

type pomPlugin struct {
	GroupID       string          `xml:"groupId"`
	ArtifactID    string          `xml:"artifactId"`
	Version       string          `xml:"version"`
	Configuration pomPluginConfig `xml:"configuration"`
}

type pomPluginConfig struct {
	Source    string `xml:"source,omitempty"`
	Target    string `xml:"target,omitempty"`
	MainClass string `xml:"archive>manifest>mainClass,omitempty"`
}

// RenderPOM returns the pom.xml document for p.
func RenderPOM(p POMParams) ([]byte, error) {
	if p.ArtifactID == "" || p.Version == "" {
		return nil, fmt.Errorf("descriptor: artifactId and version are required")
	}
	if p.GroupID == "" {
		p.GroupID = DefaultGroupID
	}
	if p.JavaRelease == "" {
		p.JavaRelease = DefaultJavaRelease
	}

	doc := pomProject{
		Xmlns:          "http://maven.apache.org/POM/4.0.0",
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd",
		ModelVersion:   "4.0.0",
		GroupID:        p.GroupID,
		ArtifactID:     p.ArtifactID,
		Version:        p.Version,
		Packaging:      "jar",
		Properties: pomProperties{
			Source:   p.JavaRelease,
			Target:   p.JavaRelease,
			Encoding: "UTF-8",
		},
		Build: pomBuild{Plugins: []pomPlugin{
			{
				GroupID:    mavenPluginsGroupID,
				ArtifactID: "maven-compiler-plugin",
				Version:    compilerPluginVer,
				Configuration: pomPluginConfig{
					Source: p.JavaRelease,
					Target: p.JavaRelease,
				},
			},
			{
				GroupID:       mavenPluginsGroupID,
				ArtifactID:    "maven-jar-plugin",
				Version:       jarPluginVer,
				Configuration: pomPluginConfig{MainClass: p.MainClass},
			},
		}},
	}

	return marshal(`<?xml version="1.0" encoding="UTF-8"?>`, doc)
}

func marshal(header string, v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteByte('\n')

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("descriptor: encoding xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
