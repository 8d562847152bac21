// Package biz 提供 portfolio 知识库的业务逻辑层。
//
// 组件划分：
//   - Embedder: 包装 Embedding 供应商，失败降级为 "无向量"
//   - Ingestor: 采集、嵌入、批量写入索引，并维护构建状态
//   - Retriever: 问题向量化、相似度检索、阈值过滤与上下文拼接
//   - Responder: 组装提示词并以流式片段输出回答
package biz
