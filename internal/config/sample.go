package config

import (
	"path/filepath"

	"github.com/oshokin/extbuild/internal/extension"
)

// Sample returns a starter project: two native targets sharing one generator
// project and a wildcard binding extension linked against them.
func Sample(packageName string) *Config {
	return &Config{
		PackageName: packageName + "-cuda" + toolkitPlaceholder,
		ModuleRoot:  "python",
		Generator: Generator{
			Executable: DefaultGenerator,
			BuildTool:  DefaultBuildTool,
		},
		Extensions: []Extension{
			{Name: "rmm", Kind: string(extension.KindNative), SourceDir: "cpp"},
			{Name: packageName, Kind: string(extension.KindNative), SourceDir: "cpp"},
			{
				Name:             "*",
				Kind:             string(extension.KindStandard),
				Sources:          []string{filepath.Join("python", packageName, "bindings", "*.cpp")},
				IncludeDirs:      []string{filepath.Join("cpp", "include")},
				LibraryBuildDirs: []string{"lib"},
				Libraries:        []string{packageName},
				Language:         "c++",
				ExtraCompileArgs: []string{"-std=c++11"},
			},
		},
		Headers: Headers{
			Roots:  []string{filepath.Join("cpp", "include")},
			Suffix: DefaultHeaderSuffix,
		},
		ChildEnv: map[string]string{
			EnvHeaderSource:     filepath.Join("cpp", "thirdparty", "rmm", "include", "rmm", "rmm_api.h"),
			EnvNativeIncludeDir: filepath.Join("cpp", "include", packageName),
		},
	}
}
