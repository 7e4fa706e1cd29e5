package backend

import "github.com/luxury-yacht/app/backend/resources/types"

// These aliases keep the App façade's long-standing exported shapes
// addressable as package backend bare, as every pre-existing call site
// across this package expects, while the canonical struct definitions live
// alongside the rest of the resource DTOs in backend/resources/types so the
// refresh subsystem's snapshot payloads and the App façade agree on one
// shape.
type (
	KubeconfigInfo      = types.KubeconfigInfo
	WindowSettings      = types.WindowSettings
	AppSettings         = types.AppSettings
	ThemeInfo           = types.ThemeInfo
	LogFetchRequest     = types.LogFetchRequest
	LogFetchResponse    = types.LogFetchResponse
	ShellSessionRequest = types.ShellSessionRequest
	ShellSession        = types.ShellSession
	ShellOutputEvent    = types.ShellOutputEvent
	ShellStatusEvent    = types.ShellStatusEvent

	HelmReleaseDetails         = types.HelmReleaseDetails
	PodDetailInfo              = types.PodDetailInfo
	ConfigMapDetails           = types.ConfigMapDetails
	SecretDetails              = types.SecretDetails
	ServiceDetails             = types.ServiceDetails
	EndpointSliceDetails       = types.EndpointSliceDetails
	IngressDetails             = types.IngressDetails
	IngressClassDetails        = types.IngressClassDetails
	NetworkPolicyDetails       = types.NetworkPolicyDetails
	RoleDetails                = types.RoleDetails
	RoleBindingDetails         = types.RoleBindingDetails
	ClusterRoleDetails         = types.ClusterRoleDetails
	ClusterRoleBindingDetails  = types.ClusterRoleBindingDetails
	ServiceAccountDetails      = types.ServiceAccountDetails
	ReplicaSetDetails          = types.ReplicaSetDetails
	DeploymentDetails          = types.DeploymentDetails
	StatefulSetDetails         = types.StatefulSetDetails
	DaemonSetDetails           = types.DaemonSetDetails
	JobDetails                 = types.JobDetails
	CronJobDetails             = types.CronJobDetails
)
