// Package pipeline renders the deployment-pipeline template that binds each
// environment variable of an env file to its Azure Key Vault secret.
//
// The generated document is an Azure Pipelines stage running
// "az webapp config appsettings set" with one App Service Key Vault reference
// per variable:
//
//	DB_HOST="@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/DB-HOST/)"
//
// The preamble is a fixed contract with the consuming pipeline and must not
// be reformatted.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/secretname"
)

// DefaultFileName is the file name used when none is given.
const DefaultFileName = "env.yml"

// EnvironmentPlaceholder is the pipeline parameter expression appended to the
// vault name when Options.EnvironmentSuffix is set.
const EnvironmentPlaceholder = "${{ parameters.environment }}"

// entryIndent places entry lines inside the inlineScript block scalar.
const entryIndent = "          "

// preamble is emitted verbatim before the entry lines.
const preamble = "parameters:\n" +
	"  - name: environment\n" +
	"    type: string\n" +
	"\n" +
	"stages:\n" +
	"- stage: Update_Environment_Variables\n" +
	"  displayName: Update Environment Variables\n" +
	"  jobs:\n" +
	"  - job: Update_Environment_Variables\n" +
	"    displayName: Update Environment Variables\n" +
	"    steps:\n" +
	"    - task: AzureCLI@2\n" +
	"      displayName: 'Update environment variables'\n" +
	"      inputs:\n" +
	"        azureSubscription: $(azureSubscription)\n" +
	"        scriptType: 'bash'\n" +
	"        scriptLocation: 'inlineScript'\n" +
	"        inlineScript: |\n" +
	"          az webapp config appsettings set --resource-group $(resource_group_name) --name $(web_app_name) --settings \\\n"

// Preamble returns the fixed text every document starts with.
func Preamble() string {
	return preamble
}

// Options configures rendering.
type Options struct {
	// EnvironmentSuffix appends EnvironmentPlaceholder to the vault name in
	// each secret URI, so one template serves per-environment vaults such as
	// "myvault" + "dev". Off by default: the vault name is used verbatim.
	EnvironmentSuffix bool
}

// Render produces the template document for vaultName and the entries of t,
// in t's iteration order. It never fails; an empty table yields the
// preamble alone.
func Render(vaultName string, t *envfile.Table, opts Options) string {
	vaultRef := VaultRef(vaultName, opts)

	var b strings.Builder
	b.WriteString(preamble)
	if t != nil {
		for _, key := range t.Keys() {
			b.WriteString(EntryLine(vaultRef, key, t.Form()))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// VaultRef returns the host label used in secret URIs.
func VaultRef(vaultName string, opts Options) string {
	if opts.EnvironmentSuffix {
		return vaultName + EnvironmentPlaceholder
	}
	return vaultName
}

// EntryLine renders one app setting. key is a table key in the given form.
func EntryLine(vaultRef, key string, form secretname.Form) string {
	return fmt.Sprintf(`%s%s="%s"`, entryIndent, settingName(key, form), SecretReference(vaultRef, key))
}

// SecretReference returns the App Service Key Vault reference for key.
func SecretReference(vaultRef, key string) string {
	return fmt.Sprintf("@Microsoft.KeyVault(SecretUri=%s)", SecretURI(vaultRef, key))
}

// SecretURI returns the versionless secret URI for key.
func SecretURI(vaultRef, key string) string {
	return fmt.Sprintf("https://%s.vault.azure.net/secrets/%s/", vaultRef, secretname.ToStoreForm(key))
}

// settingName is the environment variable name the pipeline sets. Keys that
// were rewritten into store form while parsing are turned back into file
// form; other keys are used as written.
func settingName(key string, form secretname.Form) string {
	if form == secretname.StoreForm {
		return secretname.ToFileForm(key)
	}
	return key
}
