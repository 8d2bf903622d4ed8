/*
包 idempotency 为视频任务创建接口提供 Idempotency-Key 支持。

调用方携带相同的 Idempotency-Key 重复提交时，网关直接返回首次
创建得到的 task_id，不再向服务商发起新的付费任务。结果按
(作用域, service_id, 客户端键) 哈希后存储，支持两种后端：

  - MemoryStore：进程内 map，后台定期清理过期条目。
  - RedisStore：go-redis，过期交给 Redis TTL，适合多实例部署。

Instrument 可将任意 Store 的命中/未命中上报为 cache_type=idempotency
的缓存指标。
*/
package idempotency
