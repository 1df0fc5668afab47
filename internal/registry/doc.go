// Package registry 定义包注册表后端的统一契约，以及条件请求相关的纯函数：
//
//   - Classify 把状态码 + ETag 归类为 Fresh/NotModified/NotFound/Error；
//   - FollowRedirect 最多跟随一次重定向；
//   - NormalizeVersion 处理 0.0.0-<tag> 形式的合成版本号。
//
// 具体后端（例如 github）在 init() 中通过 MustRegister 注册自己的工厂函数，
// 宿主通过 Manager 按名称持有多个后端实例。
package registry
